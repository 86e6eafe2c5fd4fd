package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/erwt/internal/xmljson"
)

var (
	xmlQuery   string
	xmlCompact bool
)

var xmlCmd = &cobra.Command{
	Use:   "xml <file>",
	Short: "Convert an XML file to JSON",
	Long: `Convert an XML file to JSON and print it.

Attributes are collected under "@attributes", text under "#text" and CDATA
under "#cdata-section". Repeated element names become arrays.

Examples:
  erwt xml catalog.xml
  erwt xml catalog.xml --query //book
  erwt xml catalog.xml --compact | jq '.catalog.book'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runXML(cmd, args[0])
	},
}

func init() {
	xmlCmd.Flags().StringVarP(&xmlQuery, "query", "q", "", "XPath expression; converts each match instead of the document")
	xmlCmd.Flags().BoolVar(&xmlCompact, "compact", false, "print compact JSON")
	rootCmd.AddCommand(xmlCmd)
}

func runXML(cmd *cobra.Command, path string) error {
	var opts []xmljson.Option
	if cfg.XML.KeepWhitespace {
		opts = append(opts, xmljson.KeepWhitespace())
	}
	conv := xmljson.New(opts...)

	text, err := xmljson.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := xmljson.ParseString(text)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	var out any = conv.Convert(doc)
	if xmlQuery != "" {
		nodes, err := xmljson.Query(doc, xmlQuery)
		if err != nil {
			return err
		}
		matches := make([]any, 0, len(nodes))
		for _, n := range nodes {
			matches = append(matches, conv.Convert(n))
		}
		out = matches
	}

	encode := xmljson.JSONIndent
	if xmlCompact {
		encode = xmljson.JSON
	}
	data, err := encode(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
