// Package models provides the data structures that flow between pipeline
// stages. The unit of transfer is an in-memory Batch of records; one batch
// is produced per extractor and batches move through transformers to loaders
// as a slice.
package models

// Record is a single row of data keyed by field name.
type Record = map[string]interface{}

// Batch is one in-memory table of records produced by a single extractor
// or flowing between pipeline stages.
type Batch struct {
	// Source names the component that produced the batch
	Source string

	// Records holds the rows in extraction order
	Records []Record
}

// NewBatch creates a batch for the given source component
func NewBatch(source string, records []Record) *Batch {
	return &Batch{Source: source, Records: records}
}

// Len returns the number of records in the batch
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// TotalRows sums the record counts across a batch set
func TotalRows(batches []*Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Len()
	}
	return total
}
