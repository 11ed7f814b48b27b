// Package pipeline runs an extraction as a sequence of steps.
//
// A Run accumulates everything the steps produce: decoded captures, the
// capture records (bodies, missing bodies, text, seeds, primary hosts),
// the crawl result, the reduced manifest and the stored run ID. The
// default pipeline is
//
//	load_captures -> capture -> crawl -> aggregate -> export -> persist -> metrics
//
// Capture files are decoded concurrently with errgroup; every later step
// is sequential. The run context is checked between steps and, inside the
// crawl, between URLs.
package pipeline
