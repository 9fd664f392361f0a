package xmlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractRecordsByTag(t *testing.T) {
	path := writeFile(t, `<?xml version="1.0"?>
<catalog>
  <book id="1"><title>First</title></book>
  <book id="2"><title>Second</title></book>
</catalog>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":  path,
		"record_tag": "book",
	}, nil)
	require.NoError(t, err)

	batch, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, batch.Len())
	assert.Equal(t, "1", batch.Records[0]["id"])
	assert.Equal(t, models.Record{"_text": "First"}, batch.Records[0]["title"])
	assert.Equal(t, "2", batch.Records[1]["id"])
}

func TestExtractAttributesTextAndNesting(t *testing.T) {
	path := writeFile(t, `<root>
  <item sku="a-1">
    in stock
    <price currency="EUR">9.99</price>
  </item>
</root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":  path,
		"record_tag": "item",
	}, nil)
	require.NoError(t, err)

	batch, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, batch.Len())
	record := batch.Records[0]
	assert.Equal(t, "a-1", record["sku"])
	assert.Equal(t, "in stock", record["_text"])
	assert.Equal(t, models.Record{"currency": "EUR", "_text": "9.99"}, record["price"])
}

func TestExtractRepeatedTagsCollapseIntoList(t *testing.T) {
	path := writeFile(t, `<root>
  <order id="7">
    <line qty="1"/>
    <line qty="2"/>
    <line qty="3"/>
  </order>
</root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":  path,
		"record_tag": "order",
	}, nil)
	require.NoError(t, err)

	batch, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, batch.Len())
	lines, ok := batch.Records[0]["line"].([]interface{})
	require.True(t, ok, "repeated child tags become a list")
	require.Len(t, lines, 3)
	assert.Equal(t, models.Record{"qty": "2"}, lines[1])
}

func TestExtractRecordsAtAnyDepth(t *testing.T) {
	path := writeFile(t, `<root>
  <region><user name="ada"/></region>
  <user name="grace"/>
</root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":  path,
		"record_tag": "user",
	}, nil)
	require.NoError(t, err)

	batch, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())
}

func TestExtractRootElementNarrowsSearch(t *testing.T) {
	path := writeFile(t, `<root>
  <archive><entry id="old"/></archive>
  <current><inner><entry id="new"/></inner></current>
</root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":    path,
		"record_tag":   "entry",
		"root_element": "current/inner",
	}, nil)
	require.NoError(t, err)

	batch, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, batch.Len())
	assert.Equal(t, "new", batch.Records[0]["id"])
}

func TestExtractMissingRootElement(t *testing.T) {
	path := writeFile(t, `<root><entry/></root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":    path,
		"record_tag":   "entry",
		"root_element": "absent",
	}, nil)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestExtractNoMatchesYieldsEmptyBatch(t *testing.T) {
	path := writeFile(t, `<root><other/></root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":  path,
		"record_tag": "entry",
	}, nil)
	require.NoError(t, err)

	batch, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())
}

func TestExtractMalformedDocument(t *testing.T) {
	path := writeFile(t, `<root><unclosed></root>`)

	extractor, err := NewExtractor("src", config.Params{
		"file_path":  path,
		"record_tag": "entry",
	}, nil)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestNewExtractorValidation(t *testing.T) {
	_, err := NewExtractor("src", config.Params{"record_tag": "entry"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewExtractor("src", config.Params{"file_path": "x.xml"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateSource(t *testing.T) {
	path := writeFile(t, `<root/>`)

	extractor, err := NewExtractor("src", config.Params{"file_path": path, "record_tag": "r"}, nil)
	require.NoError(t, err)
	assert.NoError(t, extractor.ValidateSource(context.Background()))

	missing, err := NewExtractor("src", config.Params{
		"file_path":  filepath.Join(t.TempDir(), "absent.xml"),
		"record_tag": "r",
	}, nil)
	require.NoError(t, err)
	assert.Error(t, missing.ValidateSource(context.Background()))
}
