package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// GetBookEndpoint handles GET /api/books/{id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get book
//	@Description	Book metadata with processing status, progress and last error
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	store.Book
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	book, err := s.GetBook(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book-id>",
		Short: "Get a book and its processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp store.Book
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListCharactersResponse is the response for listing a book's personas.
type ListCharactersResponse struct {
	BookID     string            `json:"book_id"`
	Characters []store.Character `json:"characters"`
}

// ListCharactersEndpoint handles GET /api/books/{id}/characters.
type ListCharactersEndpoint struct{}

func (e *ListCharactersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}/characters", e.handler
}

func (e *ListCharactersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List characters
//	@Description	Personas extracted from a fiction or children's book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	ListCharactersResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id}/characters [get]
func (e *ListCharactersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	bookID := r.PathValue("id")
	if _, err := s.GetBook(r.Context(), bookID); err != nil {
		writeErr(w, err)
		return
	}
	chars, err := s.ListCharacters(r.Context(), bookID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if chars == nil {
		chars = []store.Character{}
	}
	writeJSON(w, http.StatusOK, ListCharactersResponse{BookID: bookID, Characters: chars})
}

func (e *ListCharactersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "characters <book-id>",
		Short: "List a book's characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListCharactersResponse
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0])+"/characters", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CoverResponse carries a short-lived cover URL.
type CoverResponse struct {
	BookID string `json:"book_id"`
	URL    string `json:"url"`
}

// CoverEndpoint handles GET /api/books/{id}/cover.
type CoverEndpoint struct{}

func (e *CoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}/cover", e.handler
}

func (e *CoverEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get cover URL
//	@Description	Signed object storage URL for the book's cover image
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	CoverResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id}/cover [get]
func (e *CoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	covers := svcctx.CoversFrom(r.Context())
	s := svcctx.StoreFrom(r.Context())
	if covers == nil || s == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}

	bookID := r.PathValue("id")
	if _, err := s.GetBook(r.Context(), bookID); err != nil {
		writeErr(w, err)
		return
	}
	u, err := covers.CoverURL(r.Context(), bookID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CoverResponse{BookID: bookID, URL: u})
}

func (e *CoverEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cover <book-id>",
		Short: "Get a signed cover URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CoverResponse
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0])+"/cover", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
