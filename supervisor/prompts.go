package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/pairreader/core"
)

const (
	msgFlushing    = "Flushing knowledge base..."
	msgUploadFiles = "Please upload your files to help out reading!"
	msgProcessing  = "Processing %d file(s)..."
	msgParsing     = "Parsing %s..."
	msgIngesting   = "Ingesting %d chunks from %s..."
	msgParseFailed = "Could not read %s: %v"
	msgSuccess     = "✓ Files uploaded: %s. Knowledge base now contains %d document chunks. What do you want to know?"
	msgNoFiles     = "None of the uploaded files could be read. Knowledge base contains %d document chunks."

	msgStepStarted  = "→ %s/%s"
	msgStepFinished = "✓ %s/%s (%s)"
)

func uploadTimeoutNotice(cmd core.IngestCommand, timeout time.Duration) string {
	within := "after"
	if timeout > 0 {
		within = "in the " + timeout.String() + " following"
	}
	return fmt.Sprintf("You haven't uploaded any files %s your %s command! "+
		"You can continue to use your current knowledge base, or resend a Create or Update command.", within, cmd)
}

func successNotice(files []string, total int) string {
	if len(files) == 0 {
		return fmt.Sprintf(msgNoFiles, total)
	}
	return fmt.Sprintf(msgSuccess, strings.Join(files, ", "), total)
}
