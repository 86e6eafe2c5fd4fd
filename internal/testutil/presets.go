package testutil

// CatalogXML is a small document exercising attributes, repeated siblings,
// mixed text, CDATA and comments.
const CatalogXML = `<?xml version="1.0" encoding="UTF-8"?>
<catalog version="2">
  <!-- inventory -->
  <book id="bk101" lang="en">
    <title>XML Developer's Guide</title>
    <price>44.95</price>
  </book>
  <book id="bk102">
    <title>Midnight Rain</title>
    <price>5.95</price>
    <notes><![CDATA[<b>fragile</b>]]></notes>
  </book>
  <owner>Ada</owner>
</catalog>`

// WithStandardFiles adds the standard user data fixture set.
func (b *DirBuilder) WithStandardFiles() *DirBuilder {
	return b.
		WithFile("settings.json", `{"theme":"dark"}`).
		WithFile("catalog.xml", CatalogXML).
		WithFile("notes/today.txt", "first line").
		WithFile("error.log", "")
}
