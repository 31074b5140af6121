package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/rag"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// AskEndpoint handles POST /api/books/{id}/ask.
type AskEndpoint struct{}

func (e *AskEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{id}/ask", e.handler
}

func (e *AskEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Ask about a book
//	@Description	Answers a question as a tutor, grounded on the book's passages.
//	@Description	Refused with 409 until the book's embeddings are complete.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Book ID"
//	@Param			request	body		rag.Request	true	"Message and history"
//	@Success		200		{object}	rag.Reply
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/books/{id}/ask [post]
func (e *AskEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.RAGFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "chat service not initialized")
		return
	}

	var req rag.Request
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	reply, err := svc.Ask(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (e *AskEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <book-id> <message>",
		Short: "Ask a question about a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp rag.Reply
			path := "/api/books/" + url.PathEscape(args[0]) + "/ask"
			if err := client.Post(cmd.Context(), path, rag.Request{Message: args[1]}, "", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CharacterChatEndpoint handles POST /api/books/{id}/characters/{name}/chat.
type CharacterChatEndpoint struct{}

func (e *CharacterChatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{id}/characters/{name}/chat", e.handler
}

func (e *CharacterChatEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Chat with a character
//	@Description	Answers in the voice of one of the book's extracted characters.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Book ID"
//	@Param			name	path		string		true	"Character name"
//	@Param			request	body		rag.Request	true	"Message and history"
//	@Success		200		{object}	rag.Reply
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/books/{id}/characters/{name}/chat [post]
func (e *CharacterChatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.RAGFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "chat service not initialized")
		return
	}

	var req rag.Request
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	reply, err := svc.ChatWithCharacter(r.Context(), r.PathValue("id"), r.PathValue("name"), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (e *CharacterChatEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <book-id> <character> <message>",
		Short: "Chat with a book character",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp rag.Reply
			path := "/api/books/" + url.PathEscape(args[0]) + "/characters/" + url.PathEscape(args[1]) + "/chat"
			if err := client.Post(cmd.Context(), path, rag.Request{Message: args[2]}, "", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
