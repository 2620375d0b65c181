package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/recommend"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/wishlist"
)

type wishlistResponse struct {
	User      string                `json:"user"`
	Items     []domain.WishlistItem `json:"items"`
	Stats     wishlist.Stats        `json:"stats"`
	Category  string                `json:"category"`
	Search    string                `json:"search,omitempty"`
	Loading   bool                  `json:"loading"`
	UpdatedAt time.Time             `json:"updated_at,omitempty"`
	Error     string                `json:"error,omitempty"`
}

type addItemRequest struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Category string `json:"category"`
}

// filterRequest updates the shared wishlist view; absent fields are kept.
type filterRequest struct {
	Category *string `json:"category"`
	Search   *string `json:"search"`
}

type mutationResponse struct {
	Message string         `json:"message"`
	Data    *domain.Intent `json:"data,omitempty"`
}

type recommendationsResponse struct {
	User      string           `json:"user"`
	Items     []domain.Product `json:"items"`
	Stats     recommend.Stats  `json:"stats"`
	Note      string           `json:"note,omitempty"`
	FetchedAt time.Time        `json:"fetched_at,omitempty"`
	Stale     bool             `json:"stale"`
	Error     string           `json:"error,omitempty"`
}

type storeResponse struct {
	Items      []domain.StoreProduct `json:"items"`
	Categories []string              `json:"categories"`
	Note       string                `json:"note,omitempty"`
	FetchedAt  time.Time             `json:"fetched_at,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// handleGetWishlist filters per request; the controller's own filter is
// left alone so other observers are unaffected.
func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = domain.CategoryAll
	}
	st := s.wishlist.State()
	respondJSON(w, http.StatusOK, wishlistResponse{
		User:      st.User,
		Items:     wishlist.Filter(st.Items, category, q.Get("search")),
		Stats:     st.Stats,
		Category:  category,
		Search:    q.Get("search"),
		Loading:   st.Loading,
		UpdatedAt: st.UpdatedAt,
		Error:     st.Error,
	})
}

// handleSetWishlistFilter changes the controller's filter, which every
// event subscriber sees in the filtered list of wishlist events.
func (s *Server) handleSetWishlistFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Category != nil {
		s.wishlist.SetFilter(*req.Category)
	}
	if req.Search != nil {
		s.wishlist.SetSearchTerm(*req.Search)
	}
	respondJSON(w, http.StatusOK, s.wishlist.State())
}

func (s *Server) handleRefreshWishlist(w http.ResponseWriter, r *http.Request) {
	if err := s.wishlist.Load(r.Context(), true); err != nil {
		respondDomainError(w, err)
		return
	}
	s.handleGetWishlist(w, r)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	ack, err := s.wishlist.AddItem(r.Context(), req.Product, req.Quantity, req.Category)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mutationResponse{Message: ack.Message, Data: ack.Data})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	product, err := url.PathUnescape(chi.URLParam(r, "product"))
	if err != nil || product == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "product is required", false)
		return
	}
	ack, err := s.wishlist.RemoveItem(r.Context(), product)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mutationResponse{Message: ack.Message, Data: ack.Data})
}

func (s *Server) handleClearWishlist(w http.ResponseWriter, r *http.Request) {
	if err := s.wishlist.ClearAll(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mutationResponse{Message: "Wishlist cleared"})
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	st := s.recommend.State()
	respondJSON(w, http.StatusOK, recommendationsResponse{
		User:      st.User,
		Items:     s.recommend.ByCategory(r.URL.Query().Get("category")),
		Stats:     st.Stats,
		Note:      st.Note,
		FetchedAt: st.FetchedAt,
		Stale:     st.Stale,
		Error:     st.Error,
	})
}

func (s *Server) handleRefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := s.recommend.Refresh(r.Context()); err != nil {
		respondDomainError(w, err)
		return
	}
	s.handleGetRecommendations(w, r)
}

// handleGetStore loads the catalog on first use.
func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	if !s.catalog.Loaded() {
		if err := s.catalog.Load(r.Context()); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	q := r.URL.Query()
	st := s.catalog.State()
	respondJSON(w, http.StatusOK, storeResponse{
		Items:      s.catalog.View(q.Get("category"), q.Get("search")),
		Categories: st.Categories,
		Note:       st.Note,
		FetchedAt:  st.FetchedAt,
		Error:      st.Error,
	})
}
