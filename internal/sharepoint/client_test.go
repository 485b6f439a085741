package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/nickoftime/keyvault-spo/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredential struct {
	mu     sync.Mutex
	scopes []string
}

func (c *staticCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append(c.scopes, opts.Scopes...)
	return azcore.AccessToken{Token: "fake-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type recordedRequest struct {
	path   string
	query  string
	auth   string
	accept string
}

type fakeSite struct {
	srv      *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeSite(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeSite {
	t.Helper()
	fs := &fakeSite{handler: handler}
	fs.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.requests = append(fs.requests, recordedRequest{
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			accept: r.Header.Get("Accept"),
		})
		fs.mu.Unlock()
		fs.handler(w, r)
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeSite) connector(t *testing.T, cred azcore.TokenCredential) *Connector {
	t.Helper()
	c, err := NewConnector(Config{
		SiteURL:  fs.srv.URL + "/sites/projects/",
		ClientID: "app-id",
		Tenant:   "contoso.onmicrosoft.com",
	}, &Options{
		ClientOptions: policy.ClientOptions{
			Transport: fs.srv.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
		NewCredential: func(string, string, *vault.Certificate, policy.ClientOptions) (azcore.TokenCredential, error) {
			return cred, nil
		},
	}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestSessionItems(t *testing.T) {
	site := newFakeSite(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"value":[{"Id":3,"Title":"Newest"},{"Id":1,"Title":"Oldest"}]}`)
	})
	cred := &staticCredential{}

	sess, err := site.connector(t, cred).Open(context.Background(), &vault.Certificate{})
	require.NoError(t, err)
	defer sess.Close()

	items, err := sess.Items(context.Background(), Query{
		List:       "Project List",
		Select:     []string{"Id", "Title", "PostedBy/Title"},
		Expand:     []string{"PostedBy"},
		OrderBy:    "Created",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	id, ok := items[0].ID()
	assert.True(t, ok)
	assert.Equal(t, 3, id)
	assert.Equal(t, "Oldest", items[1].Field("Title").String())

	require.Len(t, site.requests, 1)
	req := site.requests[0]
	assert.Equal(t, "/sites/projects/_api/web/lists/getbytitle('Project List')/items", req.path)
	assert.Contains(t, req.query, "$orderby=Created%20desc")
	assert.Contains(t, req.query, "$expand=PostedBy")
	assert.Contains(t, req.query, "$select=Id%2CTitle%2CPostedBy%2FTitle")
	assert.Contains(t, req.query, "$top=500")
	assert.Equal(t, "Bearer fake-token", req.auth)
	assert.Equal(t, acceptNoMetadata, req.accept)

	assert.Equal(t, []string{site.srv.URL + "/.default"}, cred.scopes)
}

func TestSessionItemsFollowsNextLink(t *testing.T) {
	var site *fakeSite
	site = newFakeSite(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$skiptoken") == "" {
			next := site.srv.URL + r.URL.Path + "?$skiptoken=Paged%3DTRUE%26p_ID%3D2&$top=2"
			writeJSON(w, http.StatusOK, fmt.Sprintf(`{"value":[{"Id":4},{"Id":3}],"odata.nextLink":%q}`, next))
			return
		}
		writeJSON(w, http.StatusOK, `{"value":[{"Id":2},{"Id":1}]}`)
	})

	sess, err := site.connector(t, &staticCredential{}).Open(context.Background(), &vault.Certificate{})
	require.NoError(t, err)
	defer sess.Close()

	items, err := sess.Items(context.Background(), Query{List: "ProjectList", OrderBy: "Created", Descending: true})
	require.NoError(t, err)

	var ids []int
	for _, it := range items {
		id, _ := it.ID()
		ids = append(ids, id)
	}
	assert.Equal(t, []int{4, 3, 2, 1}, ids)
	assert.Len(t, site.requests, 2)
}

func TestSessionItemsEmptyList(t *testing.T) {
	site := newFakeSite(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"value":[]}`)
	})

	sess, err := site.connector(t, &staticCredential{}).Open(context.Background(), &vault.Certificate{})
	require.NoError(t, err)
	defer sess.Close()

	items, err := sess.Items(context.Background(), Query{List: "ProjectList"})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestSessionItemsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"missing list", http.StatusNotFound, ErrListNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newFakeSite(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, `{"odata.error":{"code":"-1, System.ArgumentException","message":{"lang":"en-US","value":"List does not exist."}}}`)
			})

			sess, err := site.connector(t, &staticCredential{}).Open(context.Background(), &vault.Certificate{})
			require.NoError(t, err)
			defer sess.Close()

			_, err = sess.Items(context.Background(), Query{List: "ProjectList"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSessionClosed(t *testing.T) {
	site := newFakeSite(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"value":[]}`)
	})

	sess, err := site.connector(t, &staticCredential{}).Open(context.Background(), &vault.Certificate{})
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = sess.Items(context.Background(), Query{List: "ProjectList"})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, site.requests)
}

func TestOpenCredentialFailure(t *testing.T) {
	c, err := NewConnector(Config{SiteURL: "https://contoso.sharepoint.com/sites/projects", ClientID: "app", Tenant: "contoso"}, &Options{
		NewCredential: func(string, string, *vault.Certificate, policy.ClientOptions) (azcore.TokenCredential, error) {
			return nil, errors.New("bad key")
		},
	}, nil)
	require.NoError(t, err)

	_, err = c.Open(context.Background(), &vault.Certificate{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewConnectorRejectsPlainHTTP(t *testing.T) {
	_, err := NewConnector(Config{SiteURL: "http://contoso.sharepoint.com/sites/projects"}, nil, nil)
	require.Error(t, err)
}

func TestConnectorScope(t *testing.T) {
	c, err := NewConnector(Config{SiteURL: "https://contoso.sharepoint.com/sites/projects"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://contoso.sharepoint.com/.default", c.Scope())
}

func TestItemsURLEscapesQuotes(t *testing.T) {
	c, err := NewConnector(Config{SiteURL: "https://contoso.sharepoint.com/sites/projects"}, &Options{PageSize: 25}, nil)
	require.NoError(t, err)

	s := &Session{site: c.site, pageSize: c.pageSize}
	got := s.itemsURL(Query{List: "Nick's List"})
	assert.Equal(t, "https://contoso.sharepoint.com/sites/projects/_api/web/lists/getbytitle('Nick%27%27s%20List')/items?$top=25", got)
}
