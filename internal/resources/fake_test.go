package resources

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/tokenstore"
)

type call struct {
	Method string
	Path   string
	Params url.Values
	Body   any
	Files  []string
}

// fakeAPI answers requests from canned responses keyed by "METHOD path".
type fakeAPI struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]any
	errs      map[string]error
	blob      *apiclient.Blob
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: map[string]any{}, errs: map[string]error{}}
}

func (f *fakeAPI) on(method, path string, resp any) {
	f.responses[method+" "+path] = resp
}

func (f *fakeAPI) fail(method, path string, err error) {
	f.errs[method+" "+path] = err
}

func (f *fakeAPI) record(c call, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	resp, err := f.responses[c.Method+" "+c.Path], f.errs[c.Method+" "+c.Path]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if out == nil || resp == nil {
		return nil
	}
	raw, _ := json.Marshal(resp)
	return json.Unmarshal(raw, out)
}

func (f *fakeAPI) Get(_ context.Context, path string, params url.Values, out any) error {
	return f.record(call{Method: "GET", Path: path, Params: params}, out)
}

func (f *fakeAPI) Post(_ context.Context, path string, body, out any) error {
	return f.record(call{Method: "POST", Path: path, Body: body}, out)
}

func (f *fakeAPI) Patch(_ context.Context, path string, body, out any) error {
	return f.record(call{Method: "PATCH", Path: path, Body: body}, out)
}

func (f *fakeAPI) Delete(_ context.Context, path string, out any) error {
	return f.record(call{Method: "DELETE", Path: path}, out)
}

func (f *fakeAPI) Download(_ context.Context, path string, params url.Values, fallback string) (*apiclient.Blob, error) {
	if err := f.record(call{Method: "GET", Path: path, Params: params}, nil); err != nil {
		return nil, err
	}
	if f.blob != nil {
		return f.blob, nil
	}
	return &apiclient.Blob{Filename: fallback}, nil
}

func (f *fakeAPI) Upload(_ context.Context, path string, files []apiclient.File, out any) error {
	c := call{Method: "POST", Path: path}
	for _, file := range files {
		_, _ = io.ReadAll(file.Reader)
		c.Files = append(c.Files, file.Field+":"+file.Name)
	}
	return f.record(c, out)
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeAPI) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newServices(t *testing.T) (*Services, *fakeAPI, *tokenstore.MemoryStore) {
	t.Helper()
	api := newFakeAPI()
	tokens := tokenstore.NewMemoryStore()
	return New(api, querycache.New(time.Minute, 0, nil), tokens), api, tokens
}
