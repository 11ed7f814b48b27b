// Package crawler provides the bounded live crawl and HTML extraction.
//
// # Architecture
//
// The crawler package is designed around the Spider type, which coordinates
// the crawling process. It owns a Frontier (FIFO queue plus visited set),
// asks a Fetcher for each dequeued URL and extracts text, links and assets
// with the Parser.
//
// # Components
//
//   - Spider: The crawl loop. Applies host scope, the static asset
//     denylist, ignore/follow patterns and the page budget
//   - Frontier: Queue with at-most-once enqueue and monotonic visited state
//   - Fetcher: Retrieval interface; HTTPFetcher is the net/http version
//     with per-request timeout, politeness delay and optional robots.txt
//   - Parser: Streaming HTML tokenizer that extracts visible text, links
//     and asset references
//
// # Visit states
//
// Every dequeued URL ends in exactly one of StateVisitedSuccess,
// StateVisitedNonHTML or StateVisitedFailed. Failures are recorded with a
// FailureReason and the crawl moves on to the next URL.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(crawler.WithFetchTimeout(25 * time.Second))
//	spider := crawler.NewSpider(fetcher,
//	    crawler.WithMaxPages(60),
//	    crawler.WithPrimaryHosts([]string{"example.com"}),
//	)
//	result, err := spider.Crawl(ctx, []string{"https://example.com/"})
package crawler
