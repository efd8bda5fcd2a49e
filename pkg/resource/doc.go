// Package resource resolves virtual application paths to physical resources.
//
// A [Resolver] searches, in order, the application's document tree and then
// every bundled archive root in the order the archives were declared. The
// first source that holds a path wins, which makes precedence between
// archives deterministic.
//
// Three source kinds are provided:
//
//   - [FS]: any fs.FS; [Dir] wraps a directory on disk
//   - [Archive]: the META-INF/resources tree of a zip archive
//   - [S3]: objects under a bucket prefix of any S3-compatible store
//
// Every path is canonicalized by [Clean] before a source sees it. Paths that
// climb above the application root with ".." are rejected without touching
// any source, and are reported as absent (ErrNotFound joined with ErrTraversal).
//
//	docroot, _ := resource.Dir("./webapp")
//	lib, _ := resource.OpenArchive("./webapp/lib/widgets.zip")
//	r := resource.New(docroot, resource.WithArchives(lib))
//	defer r.Close()
//
//	paths, _ := r.Paths(ctx, "/catalog/")  // ["/catalog/index.html", "/catalog/offers/"]
//	rc, err := r.Open(ctx, "/catalog/index.html")
package resource
