// Package socks routes crawl traffic through a SOCKS5 proxy.
//
// The proxy is optional. When configured, every request of the live crawl
// and the asset downloader is dialed through it, which allows harvesting
// sites that are only reachable from a tunnel or a bastion host.
package socks
