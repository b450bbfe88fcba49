// Package transport builds the HTTP client used to fetch pages.
//
// Without a proxy the client is a plain net/http client with an optional
// timeout. With a SOCKS5 address every connection is dialed through that
// single proxy (golang.org/x/net/proxy). CheckProxy performs a SOCKS5
// greeting so a misconfigured proxy is reported before a crawl starts.
package transport
