// Package testutils builds mail fixtures shared by package tests: single
// RFC 5322 messages, mbox streams and gzip-compressed archives.
//
//	raw := testutils.MessageSpec{
//		From:    "Phil <phil at example.org>",
//		Subject: "Release plan",
//		Body:    "Shipping on Friday.",
//	}.Bytes()
//	archive := testutils.Gzip(t, testutils.Mbox(raw))
package testutils
