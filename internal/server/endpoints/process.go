package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/svcctx"
	"github.com/jackzampolin/lectern/internal/trigger"
)

// ReplayedHeader is set on a response replayed for a repeated Idempotency-Key.
const ReplayedHeader = "Idempotent-Replayed"

// ProcessEndpoint handles POST /api/process.
type ProcessEndpoint struct{}

func (e *ProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", trigger.ProcessPath, e.handler
}

func (e *ProcessEndpoint) RequiresInit() bool { return true }

func (e *ProcessEndpoint) RequiresAuth() bool { return true }

// handler godoc
//
//	@Summary		Start processing a book
//	@Description	Queues extraction, chunking, embedding and persona extraction.
//	@Description	A repeated Idempotency-Key within 24h returns the original reply.
//	@Tags			processing
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			Idempotency-Key	header		string					false	"Idempotency key"
//	@Param			request			body		pipeline.TriggerRequest	true	"Book to process"
//	@Success		202				{object}	pipeline.Accepted
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		404				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/process [post]
func (e *ProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.PipelineFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "processing service not initialized")
		return
	}

	var req pipeline.TriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	accepted, replayed, err := svc.Trigger(r.Context(), req, r.Header.Get(trigger.IdempotencyHeader))
	if err != nil {
		writeErr(w, err)
		return
	}
	if replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (e *ProcessEndpoint) Command(getServerURL func() string) *cobra.Command {
	var force bool
	var key string
	cmd := &cobra.Command{
		Use:   "process <book-id>",
		Short: "Start processing a book",
		Long: `Start the ingestion pipeline for an uploaded book.

A completed book, or one whose previous run crashed, is only reprocessed
with --force. Retries reuse the same Idempotency-Key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp pipeline.Accepted
			if err := client.Process(cmd.Context(), args[0], force, key, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess a completed or stalled book")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key (default: generated)")
	return cmd
}
