package internal_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/minicat/internal"
	"github.com/dmitrymomot/minicat/pkg/resource"
)

func zipArchive(t *testing.T, name string, files map[string]string) *resource.Archive {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for n, body := range files {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	a, err := resource.NewArchive(name, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return a
}

func docRoot() resource.Source {
	return resource.NewFS("docroot", fstest.MapFS{
		"index.html":      {Data: []byte("<h1>home</h1>")},
		"css/app.css":     {Data: []byte("body{}")},
		"WEB-INF/web.xml": {Data: []byte("<web-app/>")},
		"shared.js":       {Data: []byte("doc")},
	}, "file:///srv/app")
}

func TestSharedContextAttributes(t *testing.T) {
	t.Parallel()

	app := startApp(t)
	sc := app.SharedContext()

	dir, ok := sc.Attribute(internal.AttrTempDir)
	require.True(t, ok)
	require.Equal(t, sc.TempDir(), dir)

	sc.SetAttribute("counter", 1)
	v, ok := sc.Attribute("counter")
	require.True(t, ok)
	require.Equal(t, 1, v)

	sc.SetAttribute("counter", nil)
	_, ok = sc.Attribute("counter")
	require.False(t, ok)

	sc.SetAttribute("b", "x")
	sc.SetAttribute("a", "y")
	sc.RemoveAttribute("b")
	require.Equal(t, []string{"a", internal.AttrOrderedLibs, internal.AttrTempDir}, sc.AttributeNames())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			sc.SetAttribute(key, i)
			_, _ = sc.Attribute(key)
		}()
	}
	wg.Wait()
	for i := range 5 {
		_, ok := sc.Attribute(fmt.Sprintf("k%d", i))
		require.True(t, ok)
	}
}

func TestSharedContextInitParamsAndInfo(t *testing.T) {
	t.Parallel()

	var cfgParam string
	var cfgNames []string
	app := startApp(t,
		internal.WithContextPath("/shop"),
		internal.WithDisplayName("Shop"),
		internal.WithInitParams(map[string]string{"region": "eu", "currency": "EUR"}),
		internal.WithInitParam("region", "us"),
		internal.WithServlet("s", initSpy(func(cfg *internal.Config) {
			cfgParam, _ = cfg.InitParam("page_size")
			cfgNames = cfg.InitParamNames()
		}), internal.InitParam("page_size", "20"), internal.InitParam("theme", "dark"), internal.LoadOnStartup(0)),
	)
	sc := app.SharedContext()

	region, ok := sc.InitParam("region")
	require.True(t, ok)
	require.Equal(t, "us", region)
	_, ok = sc.InitParam("missing")
	require.False(t, ok)
	require.Equal(t, []string{"currency", "region"}, sc.InitParamNames())

	require.Equal(t, "20", cfgParam)
	require.Equal(t, []string{"page_size", "theme"}, cfgNames)

	require.Equal(t, "/shop", sc.ContextPath())
	require.Equal(t, "Shop", sc.DisplayName())
	require.Equal(t, "minicat/1.0", sc.ServerInfo())
	require.Equal(t, 1, sc.MajorVersion())
	require.Equal(t, 0, sc.MinorVersion())
	require.NotNil(t, sc.Logger())
	sc.Log("hello")
	sc.LogError("failed", io.ErrUnexpectedEOF)
}

func TestSharedContextTempDir(t *testing.T) {
	t.Parallel()

	app := internal.New(internal.WithTempDir(t.TempDir()))
	require.NoError(t, app.Start(context.Background()))
	dir := app.SharedContext().TempDir()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.NoError(t, app.Stop(time.Second))
	_, err = os.Stat(dir)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSharedContextMimeType(t *testing.T) {
	t.Parallel()

	app := startApp(t, internal.WithMimeTypes(map[string]string{"foo": "application/x-foo"}))
	sc := app.SharedContext()

	ct, ok := sc.MimeType("/css/app.css")
	require.True(t, ok)
	require.Equal(t, "text/css; charset=utf-8", ct)

	ct, ok = sc.MimeType("data.FOO")
	require.True(t, ok)
	require.Equal(t, "application/x-foo", ct)

	_, ok = sc.MimeType("README")
	require.False(t, ok)
}

func TestSharedContextResources(t *testing.T) {
	t.Parallel()

	lib := zipArchive(t, "widgets.jar", map[string]string{
		"META-INF/resources/widgets/button.js": "button",
		"META-INF/resources/shared.js":         "archive",
		"com/example/Widget.class":             "bytecode",
	})
	app := startApp(t, internal.WithDocumentRoot(docRoot()), internal.WithArchives(lib))
	sc := app.SharedContext()
	ctx := context.Background()

	libs, ok := sc.Attribute(internal.AttrOrderedLibs)
	require.True(t, ok)
	require.Equal(t, []string{"widgets.jar"}, libs)

	paths, err := sc.ResourcePaths(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, []string{"/WEB-INF/", "/css/", "/index.html", "/shared.js", "/widgets/"}, paths)

	loc, err := sc.Resource(ctx, "/shared.js")
	require.NoError(t, err)
	require.Equal(t, "docroot", loc.Source)

	loc, err = sc.Resource(ctx, "/widgets/button.js")
	require.NoError(t, err)
	require.Equal(t, "widgets.jar", loc.Source)

	rc, err := sc.ResourceStream(ctx, "/WEB-INF/web.xml")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "<web-app/>", string(body))

	_, err = sc.Resource(ctx, "/missing.txt")
	require.ErrorIs(t, err, internal.ErrNotFound)
	require.ErrorIs(t, err, resource.ErrNotFound)

	_, err = sc.ResourceStream(ctx, "/../etc/passwd")
	require.ErrorIs(t, err, internal.ErrNotFound)
	require.ErrorIs(t, err, resource.ErrTraversal)
}

func TestSharedContextPublicResources(t *testing.T) {
	t.Parallel()

	app := startApp(t, internal.WithDocumentRoot(docRoot()))
	sc := app.SharedContext()
	ctx := context.Background()

	refused := []string{
		"/WEB-INF/web.xml",
		"/web-inf/web.xml",
		"/WEB-INF",
		"/%57EB-INF/web.xml",
		"/%2557EB-INF/web.xml",
		"\\WEB-INF\\web.xml",
		"/css/../WEB-INF/web.xml",
		"/WEB-INF;x=1/web.xml",
		"/META-INF/MANIFEST.MF",
	}
	for _, p := range refused {
		t.Run("refuses "+p, func(t *testing.T) {
			t.Parallel()
			_, err := sc.PublicResource(ctx, p)
			require.ErrorIs(t, err, internal.ErrNotFound)
			require.ErrorIs(t, err, internal.ErrProtectedPath)

			_, err = sc.PublicResourceStream(ctx, p)
			require.ErrorIs(t, err, internal.ErrNotFound)
		})
	}

	t.Run("traversal", func(t *testing.T) {
		t.Parallel()
		_, err := sc.PublicResource(ctx, "/%2e%2e/etc/passwd")
		require.ErrorIs(t, err, internal.ErrNotFound)
		require.ErrorIs(t, err, resource.ErrTraversal)
	})

	t.Run("undecodable", func(t *testing.T) {
		t.Parallel()
		_, err := sc.PublicResource(ctx, "/bad%zz")
		require.ErrorIs(t, err, internal.ErrNotFound)
	})

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()
		loc, err := sc.PublicResource(ctx, "/css;v=2/app%2Ecss")
		require.NoError(t, err)
		require.Equal(t, "/css/app.css", loc.Path)
		require.Equal(t, "file:///srv/app/css/app.css", loc.URL)

		rc, err := sc.PublicResourceStream(ctx, "css\\app.css")
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.Equal(t, "body{}", string(body))
	})

	t.Run("custom protected set", func(t *testing.T) {
		t.Parallel()
		custom := startApp(t,
			internal.WithDocumentRoot(docRoot()),
			internal.WithProtectedPaths("/css"),
		)
		require.True(t, custom.SharedContext().IsProtected("/CSS/app.css"))
		require.False(t, custom.SharedContext().IsProtected("/WEB-INF/web.xml"))
		require.False(t, custom.SharedContext().IsProtected("/cssx"))
	})
}

func TestStaticServlet(t *testing.T) {
	t.Parallel()

	app := startApp(t,
		internal.WithDocumentRoot(docRoot()),
		internal.WithServletKind("files", internal.StaticKind,
			internal.Patterns("/"),
			internal.InitParam("cache_control", "no-cache"),
		),
	)

	t.Run("welcome file", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "<h1>home</h1>", rec.Body.String())
		require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/css/app.css")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "body{}", rec.Body.String())
	})

	t.Run("head", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodHead, "/css/app.css")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Body.String())
	})

	t.Run("protected", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/WEB-INF/web.xml")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/nope.css")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodPost, "/css/app.css")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		require.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
	})

	require.Contains(t, internal.Factories(), internal.StaticKind)
}

type initSpy func(cfg *internal.Config)

func (f initSpy) Init(cfg *internal.Config) error { f(cfg); return nil }

func (f initSpy) Service(*internal.Request, internal.Response) error { return nil }

func (f initSpy) Destroy() {}
