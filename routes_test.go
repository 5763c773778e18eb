package relay_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/relay"
	"github.com/bjaus/relay/relaytest"
)

func newRoutesRouter() *relay.Router {
	r := relay.New(relay.WithTitle("Test API"), relay.WithVersion("2.1.0"))
	relay.Post(r, "/users", relay.JSON[string](), func(s relay.ValueSender[string], _ relay.Args, _ relay.Dispatcher) {
		s.SendValue("ok")
	}, relay.Body[string](http.StatusBadRequest), relay.Header("X-Tenant"))
	relay.Get(r, "/users", relay.StatusCode(), okHandler)
	relay.Get(r, "/health", relay.StatusCode(), okHandler)
	return r
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	table := newRoutesRouter().Routes()

	assert.Equal(t, "Test API", table.Title)
	assert.Equal(t, "2.1.0", table.Version)
	require.Len(t, table.Routes, 3)

	assert.Equal(t, []string{"GET /health", "GET /users", "POST /users"}, []string{
		table.Routes[0].Method + " " + table.Routes[0].Path,
		table.Routes[1].Method + " " + table.Routes[1].Path,
		table.Routes[2].Method + " " + table.Routes[2].Path,
	})
	assert.Equal(t, "value", table.Routes[2].Response)
	assert.Equal(t, []string{"body", "header:X-Tenant"}, table.Routes[2].Args)
	assert.Equal(t, "status", table.Routes[1].Response)
}

func TestRouter_ServeRoutes(t *testing.T) {
	t.Parallel()

	r := newRoutesRouter()
	r.ServeRoutes("/routes")

	c := relaytest.NewClient(t, r)
	resp := relaytest.Get[relay.RouteTable](t, c, "/routes")

	require.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, "Test API", resp.Body.Title)
	assert.Len(t, resp.Body.Routes, 4, "the route table lists itself")
}

func TestRouter_ServeRoutesYAML(t *testing.T) {
	t.Parallel()

	r := newRoutesRouter()
	r.ServeRoutesYAML("/routes.yaml")

	c := relaytest.NewClient(t, r)
	resp, err := c.Server.Client().Get(c.Server.URL + "/routes.yaml")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var table relay.RouteTable
	require.NoError(t, yaml.Unmarshal(data, &table))
	assert.Equal(t, "2.1.0", table.Version)
	assert.Len(t, table.Routes, 4)
}

func TestRouter_WriteRoutes(t *testing.T) {
	t.Parallel()

	r := newRoutesRouter()

	var jsonBuf, yamlBuf bytes.Buffer
	require.NoError(t, r.WriteRoutes(&jsonBuf))
	require.NoError(t, r.WriteRoutesYAML(&yamlBuf))

	var fromJSON, fromYAML relay.RouteTable
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))

	assert.Equal(t, r.Routes(), fromJSON)
	assert.Equal(t, r.Routes(), fromYAML)
	assert.Contains(t, jsonBuf.String(), "\n  \"title\": \"Test API\"")
}
