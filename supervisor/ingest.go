package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/ingestion"
	"github.com/poiesic/pairreader/workflow"
)

// ParseUploads reads file paths separated by whitespace or commas.
func ParseUploads(text string) []core.Upload {
	var uploads []core.Upload
	for _, path := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		uploads = append(uploads, core.Upload{Name: filepath.Base(path), Path: path})
	}
	return uploads
}

// handleIngestion applies the ingestion command. A reset happens once, on
// first execution, before anything is added. A command without uploads
// suspends for them.
func (s *Supervisor) handleIngestion(ctx context.Context, st workflow.State, in *workflow.HumanInput) (workflow.Patch, error) {
	cfg := s.Settings.Load()
	if in == nil && st.Command == core.IngestReset {
		s.send(ctx, msgFlushing)
		if err := s.Store.Reset(ctx); err != nil {
			return workflow.Patch{}, core.NewServiceError("knowledge.reset", err)
		}
		s.logger.Info("knowledge base reset")
	}

	uploads := st.Uploads
	var patch workflow.Patch
	if st.Command != core.IngestNone && len(uploads) == 0 {
		if in == nil {
			return workflow.Patch{}, workflow.Suspend(workflow.KindUpload, msgUploadFiles, cfg.UploadTimeout)
		}
		if !in.TimedOut {
			uploads = ParseUploads(in.Text)
		}
		if len(uploads) == 0 {
			s.send(ctx, uploadTimeoutNotice(st.Command, cfg.UploadTimeout))
			return workflow.Patch{}, nil
		}
		patch.Uploads = workflow.Set(uploads)
	}
	if len(uploads) == 0 {
		return patch, nil
	}

	report, err := s.Ingestion.Ingest(ctx, uploads, ingestMonitor{ctx: ctx, s: s})
	if err != nil {
		if ctx.Err() != nil {
			return workflow.Patch{}, ctx.Err()
		}
		return workflow.Patch{}, core.NewServiceError("knowledge.add", err)
	}
	s.send(ctx, successNotice(report.Files, report.Total))
	return patch, nil
}

// ingestMonitor reports ingestion progress on the channel.
type ingestMonitor struct {
	ctx context.Context
	s   *Supervisor
}

var _ ingestion.Monitor = ingestMonitor{}

func (m ingestMonitor) Processing(files int) { m.s.notify(m.ctx, msgProcessing, files) }
func (m ingestMonitor) Parsing(file string)  { m.s.notify(m.ctx, msgParsing, file) }

func (m ingestMonitor) Ingesting(file string, chunks int) {
	m.s.notify(m.ctx, msgIngesting, chunks, file)
}

func (m ingestMonitor) Failed(file string, err error) {
	m.s.send(m.ctx, fmt.Sprintf(msgParseFailed, file, err))
}
