package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/prompts"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// PromptsListResponse contains all prompts.
type PromptsListResponse struct {
	Prompts []prompts.EmbeddedPrompt `json:"prompts"`
}

// BookPromptsListResponse contains all prompts resolved for a book.
type BookPromptsListResponse struct {
	BookID  string                   `json:"book_id"`
	Prompts []prompts.ResolvedPrompt `json:"prompts"`
}

// SetPromptRequest is the request body for setting a book prompt override.
type SetPromptRequest struct {
	Text string `json:"text"`
	Note string `json:"note,omitempty"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List all prompts
//	@Description	Get all registered prompts with their embedded defaults
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{object}	PromptsListResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not available")
		return
	}
	writeJSON(w, http.StatusOK, PromptsListResponse{Prompts: resolver.AllEmbedded()})
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), "/api/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetPromptEndpoint handles GET /api/prompts/{key}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{key}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a prompt
//	@Description	Get a prompt by key. With book_id the book's override is applied.
//	@Tags			prompts
//	@Produce		json
//	@Param			key		path		string	true	"Prompt key (e.g., answer.tutor.system)"
//	@Param			book_id	query		string	false	"Resolve for this book"
//	@Success		200		{object}	prompts.ResolvedPrompt
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/prompts/{key} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not available")
		return
	}

	resolved, err := resolver.Resolve(r.PathValue("key"), r.URL.Query().Get("book_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var bookID string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a prompt by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompts/" + url.PathEscape(args[0])
			if bookID != "" {
				path += "?book_id=" + url.QueryEscape(bookID)
			}
			var resp prompts.ResolvedPrompt
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&bookID, "book", "", "Resolve with this book's override")
	return cmd
}

// ListBookPromptsEndpoint handles GET /api/books/{id}/prompts.
type ListBookPromptsEndpoint struct{}

func (e *ListBookPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}/prompts", e.handler
}

func (e *ListBookPromptsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List prompts for a book
//	@Description	Get all prompts resolved for a specific book (with overrides applied)
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	BookPromptsListResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id}/prompts [get]
func (e *ListBookPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not available")
		return
	}

	bookID := r.PathValue("id")
	embedded := resolver.AllEmbedded()
	resp := BookPromptsListResponse{
		BookID:  bookID,
		Prompts: make([]prompts.ResolvedPrompt, 0, len(embedded)),
	}
	for _, p := range embedded {
		resolved, err := resolver.Resolve(p.Key, bookID)
		if err != nil {
			writeErr(w, err)
			return
		}
		resp.Prompts = append(resp.Prompts, *resolved)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListBookPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book-list <book-id>",
		Short: "List prompts for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookPromptsListResponse
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0])+"/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SetBookPromptEndpoint handles PUT /api/books/{id}/prompts/{key}.
type SetBookPromptEndpoint struct{}

func (e *SetBookPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/books/{id}/prompts/{key}", e.handler
}

func (e *SetBookPromptEndpoint) RequiresInit() bool { return true }

func (e *SetBookPromptEndpoint) RequiresAuth() bool { return true }

// handler godoc
//
//	@Summary		Set a book prompt override
//	@Description	Replace a prompt for one book. The text must parse as a template.
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Book ID"
//	@Param			key		path		string				true	"Prompt key"
//	@Param			body	body		SetPromptRequest	true	"Prompt override"
//	@Success		200		{object}	prompts.BookOverride
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/books/{id}/prompts/{key} [put]
func (e *SetBookPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not available")
		return
	}

	var req SetPromptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	o, err := resolver.SetBookOverride(r.PathValue("id"), r.PathValue("key"), req.Text, req.Note)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (e *SetBookPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "book-set <book-id> <key> <text>",
		Short: "Override a prompt for a book",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp prompts.BookOverride
			path := "/api/books/" + url.PathEscape(args[0]) + "/prompts/" + url.PathEscape(args[1])
			if err := client.Put(cmd.Context(), path, SetPromptRequest{Text: args[2], Note: note}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Why the override exists")
	return cmd
}

// ClearBookPromptEndpoint handles DELETE /api/books/{id}/prompts/{key}.
type ClearBookPromptEndpoint struct{}

func (e *ClearBookPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{id}/prompts/{key}", e.handler
}

func (e *ClearBookPromptEndpoint) RequiresInit() bool { return true }

func (e *ClearBookPromptEndpoint) RequiresAuth() bool { return true }

// handler godoc
//
//	@Summary		Clear a book prompt override
//	@Tags			prompts
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Book ID"
//	@Param			key	path	string	true	"Prompt key"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/books/{id}/prompts/{key} [delete]
func (e *ClearBookPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not available")
		return
	}

	bookID, key := r.PathValue("id"), r.PathValue("key")
	if !resolver.ClearBookOverride(bookID, key) {
		writeErr(w, errs.NotFound("endpoints.ClearBookPrompt", "no override for %s on book %s", key, bookID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ClearBookPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book-clear <book-id> <key>",
		Short: "Remove a book's prompt override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/books/" + url.PathEscape(args[0]) + "/prompts/" + url.PathEscape(args[1])
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			cmd.Println("Override cleared")
			return nil
		},
	}
}
