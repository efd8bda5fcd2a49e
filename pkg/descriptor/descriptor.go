package descriptor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/minicat/pkg/resource"
)

// Descriptor is one application's deployment configuration.
type Descriptor struct {
	// InitParams are the application-wide init parameters.
	InitParams map[string]string `yaml:"init_params"`
	// MimeTypes add to or override the built-in extension table.
	MimeTypes map[string]string `yaml:"mime_types"`
	// ContextPath is the URL prefix the application is mounted at ("" for root).
	ContextPath string `yaml:"context_path"`
	DisplayName string `yaml:"display_name"`
	// DocumentRoot is the directory holding the application's own resources.
	DocumentRoot string `yaml:"document_root"`
	// Archives are zip files whose META-INF/resources trees are published,
	// searched in the order listed.
	Archives []string `yaml:"archives"`
	// S3Archives are remote archive roots searched after Archives.
	S3Archives []S3Archive `yaml:"s3_archives"`
	// Protected lists directories refused to client-originated paths.
	// Empty means the defaults (/WEB-INF, /META-INF).
	Protected []string `yaml:"protected"`
	Servlets  []Servlet `yaml:"servlets"`
	// MaxDispatchDepth bounds forward/include chains. Zero means the default.
	MaxDispatchDepth int `yaml:"max_dispatch_depth"`
	// ResponseBuffer is the response buffer size in bytes. Zero means unbuffered.
	ResponseBuffer int `yaml:"response_buffer"`
}

// S3Archive is an archive root served from an S3-compatible bucket.
type S3Archive struct {
	Name              string `yaml:"name"`
	resource.S3Config `yaml:",inline"`
}

// Servlet registers one servlet.
type Servlet struct {
	InitParams map[string]string `yaml:"init_params"`
	// LoadOnStartup orders eager initialization. Absent or negative means lazy.
	LoadOnStartup *int   `yaml:"load_on_startup"`
	Name          string `yaml:"name"`
	// Kind names a registered servlet factory.
	Kind     string   `yaml:"kind"`
	Patterns []string `yaml:"patterns"`
}

// StartupOrder returns the load-on-startup value, -1 when absent.
func (s Servlet) StartupOrder() int {
	if s.LoadOnStartup == nil {
		return -1
	}
	return *s.LoadOnStartup
}

// Parse decodes and validates a descriptor. Unknown fields are rejected.
func Parse(r io.Reader) (*Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseFS reads and parses name from fsys.
func ParseFS(fsys fs.FS, name string) (*Descriptor, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", name, err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", name, err)
	}
	return d, nil
}

// Load reads a descriptor file from disk. Relative document root and
// archive paths are resolved against the file's directory.
func Load(path string) (*Descriptor, error) {
	dir := filepath.Dir(path)
	d, err := ParseFS(os.DirFS(dir), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	d.resolvePaths(dir)
	return d, nil
}

// Validate checks structural rules. URL pattern syntax is checked by the
// container when it builds its mapping table.
func (d *Descriptor) Validate() error {
	var errs []error

	if cp := d.ContextPath; cp != "" && (!strings.HasPrefix(cp, "/") || strings.HasSuffix(cp, "/")) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrContextPath, cp))
	}

	seen := make(map[string]bool, len(d.Servlets))
	for i, s := range d.Servlets {
		switch {
		case strings.TrimSpace(s.Name) == "":
			errs = append(errs, fmt.Errorf("%w: servlets[%d]", ErrEmptyServletName, i))
			continue
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateServlet, s.Name))
		}
		seen[s.Name] = true

		if strings.TrimSpace(s.Kind) == "" {
			errs = append(errs, fmt.Errorf("%w: servlet %q", ErrEmptyServletKind, s.Name))
		}
	}

	for i, a := range d.S3Archives {
		if a.Name == "" || a.Bucket == "" {
			errs = append(errs, fmt.Errorf("%w: s3_archives[%d] needs name and bucket", ErrInvalid, i))
		}
	}

	if d.MaxDispatchDepth < 0 || d.ResponseBuffer < 0 {
		errs = append(errs, fmt.Errorf("%w: negative limits", ErrInvalid))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalid}, errs...)...)
	}
	return nil
}

func (d *Descriptor) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	d.DocumentRoot = abs(d.DocumentRoot)
	for i, a := range d.Archives {
		d.Archives[i] = abs(a)
	}
}
