package transport

import "net/http"

// OverrideForTest swaps a Client's HTTP transport and URL scheme so it can
// target an httptest.Server. Exported for use by other packages' tests;
// production code has no reason to call it.
func OverrideForTest(c *Client, httpClient *http.Client, scheme string) {
	c.httpClient = httpClient
	c.scheme = scheme
}
