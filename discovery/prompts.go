package discovery

import (
	"fmt"
	"strings"

	"github.com/poiesic/pairreader/core"
)

const mapPromptTemplate = `Summarize the following cluster of documents in a concise and informative manner.

%s`

const reducePromptTemplate = `Summarize the following sub-summaries, produced by summarizing clusters of documents one at a time, into one concise and informative overview.

%s`

// User-facing notices.
const (
	msgRetrieving   = "Retrieving and clustering document content..."
	msgGenerating   = "Generating summaries for %d clusters..."
	msgSynthesizing = "Synthesizing final overview from cluster summaries..."
	msgEmptyCorpus  = "The knowledge base is empty, so there is nothing to explore yet. Upload files with the Create or Update command first."
	msgNoClusters   = "The sampled documents did not form any cluster, so no overview could be produced. Try a larger sample or a coarser granularity."
)

func buildMapPrompt(docs []*core.Document) string {
	var sb strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&sb, "doc %d:\n%s\n", i+1, doc.Text)
	}
	return fmt.Sprintf(mapPromptTemplate, sb.String())
}

func buildReducePrompt(summaries []core.ClusterSummary) string {
	var sb strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&sb, "map-summary %d:\n%s\n", i+1, s.Text)
	}
	return fmt.Sprintf(reducePromptTemplate, sb.String())
}

func placeholder(label int, err error) string {
	return fmt.Sprintf("[summary unavailable for cluster %d: %v]", label, err)
}
