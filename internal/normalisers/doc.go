// Package normalisers holds the document text extractors used by ingestion.
// Each subpackage knows how to turn one file format into plain text for the
// extraction agents. Only PDF is accepted today.
package normalisers
