// Package descriptor loads YAML deployment descriptors.
//
// A descriptor declares one application: its context path, init parameters,
// resource roots and the ordered list of servlets with their URL patterns.
// Servlets reference implementations by kind, a name registered with the
// container's factory registry.
//
//	context_path: /shop
//	document_root: ./webapp
//	archives: [./lib/widgets.zip]
//	init_params:
//	  currency: EUR
//	servlets:
//	  - name: catalog
//	    kind: catalog
//	    load_on_startup: 1
//	    patterns: ["/catalog/*", "*.product"]
//	    init_params:
//	      page_size: "20"
//	  - name: static
//	    kind: static
//	    patterns: ["/"]
//
// Parse rejects unknown fields and reports every structural problem at once,
// joined with [ErrInvalid].
package descriptor
