// Package capture decodes recorded HTTP archive (HAR) files.
//
// A capture file is a JSON document holding the pages and request/response
// entries a browser recorded while a user navigated a site. The package
// turns such a document into plain Entry values: the request URL, the
// response status, the primary mime type and the response body when one
// was recorded.
//
// Capture files in the wild are frequently damaged or partial. Decoding is
// therefore tolerant:
//   - an entry that does not decode is skipped and counted, never fatal
//   - a body that is not recorded, or whose base64 payload is corrupt, is
//     reported as absent rather than as an error
//   - text bodies with invalid UTF-8 sequences are decoded lossily
//
// The package performs no I/O besides reading the supplied reader.
package capture
