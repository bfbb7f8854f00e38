package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/media"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/review"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type ProductService struct {
	Repo   *repo.GormRepo
	Images media.ImageHost
	Events events.Publisher
	Search SearchIndex
	Now    func() time.Time
}

func (s *ProductService) ListProducts(ctx context.Context, values url.Values) (*transport.ProductList, error) {
	q, err := query.Parse(values)
	if err != nil {
		return nil, err
	}
	items, total, filtered, err := s.Repo.ListProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	return &transport.ProductList{
		Products:      items,
		TotalCount:    total,
		PageSize:      query.PageSize,
		FilteredCount: filtered,
		Page:          q.Page,
	}, nil
}

// SearchProducts uses the search index when one is configured and falls back
// to the keyword listing otherwise.
func (s *ProductService) SearchProducts(ctx context.Context, text string, page int) (*transport.ProductList, error) {
	if page < 1 {
		page = 1
	}
	if s.Search == nil {
		return s.ListProducts(ctx, url.Values{"keyword": {text}, "page": {fmt.Sprint(page)}})
	}

	from, size := query.Calculate(page, query.PageSize)
	hits, ids, err := s.Search.Search(ctx, text, from, size)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &transport.ProductList{
		Products:      items,
		TotalCount:    total,
		PageSize:      query.PageSize,
		FilteredCount: hits,
		Page:          page,
	}, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.Repo.GetProduct(ctx, id)
}

func (s *ProductService) AdminProducts(ctx context.Context) ([]models.Product, error) {
	return s.Repo.AllProducts(ctx)
}

// uploadAll stores every image in folder. On failure the images uploaded so
// far are removed again.
func (s *ProductService) uploadAll(ctx context.Context, files []string, folder string) ([]models.ProductImage, error) {
	out := make([]models.ProductImage, 0, len(files))
	for i, f := range files {
		img, err := s.Images.Upload(ctx, f, folder, media.UploadOptions{})
		if err != nil {
			s.discard(ctx, out)
			return nil, err
		}
		out = append(out, models.ProductImage{Position: i, Image: img})
	}
	return out, nil
}

func (s *ProductService) discard(ctx context.Context, imgs []models.ProductImage) {
	for _, img := range imgs {
		if err := s.Images.Delete(ctx, img.PublicID); err != nil {
			logging.FromContext(ctx).Warn("discard_image_failed", "public_id", img.PublicID, "error", err)
		}
	}
}

func (s *ProductService) deleteAll(ctx context.Context, imgs []models.ProductImage) error {
	var errs []error
	for _, img := range imgs {
		if err := s.Images.Delete(ctx, img.PublicID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ProductService) reindex(ctx context.Context, p *models.Product) {
	if s.Search == nil {
		return
	}
	if err := s.Search.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("index_product_failed", "product_id", p.ID, "error", err)
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, userID uuid.UUID, req transport.CreateProductRequest) (*models.Product, error) {
	if req.Price == nil || req.Stock == nil {
		return nil, fmt.Errorf("%w: price and stock are required", apperr.ErrValidation)
	}
	imgs, err := s.uploadAll(ctx, req.Images, media.FolderProducts)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Category:    req.Category,
		Stock:       *req.Stock,
		UserID:      userID,
		Images:      imgs,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		s.discard(ctx, imgs)
		return nil, err
	}

	s.reindex(ctx, p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), events.ProductCreated, nowOr(s.Now), p)
	return p, nil
}

// UpdateProduct applies a partial update. New images are uploaded first and
// the old ones are removed from the host only after the update is stored.
func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, req transport.UpdateProductRequest) (*models.Product, error) {
	current, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	ch := repo.ProductChanges{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Category:      req.Category,
		Stock:         req.Stock,
		ReplaceImages: req.Images != nil,
	}
	if ch.ReplaceImages {
		if ch.Images, err = s.uploadAll(ctx, req.Images, media.FolderProducts); err != nil {
			return nil, err
		}
	}

	p, err := s.Repo.UpdateProduct(ctx, id, ch)
	if err != nil {
		s.discard(ctx, ch.Images)
		return nil, err
	}

	if ch.ReplaceImages {
		// the row already points at the new images; old ones left on the host are orphans
		if err := s.deleteAll(ctx, current.Images); err != nil {
			logging.FromContext(ctx).Warn("delete_old_images_failed", "product_id", id, "error", err)
		}
	}

	s.reindex(ctx, p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), events.ProductUpdated, nowOr(s.Now), p)
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deleteAll(ctx, p.Images); err != nil {
		return err
	}
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	if s.Search != nil {
		if err := s.Search.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("unindex_product_failed", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, events.TopicProducts, id.String(), events.ProductDeleted, nowOr(s.Now), map[string]any{"id": id})
	return nil
}

func (s *ProductService) UpsertReview(ctx context.Context, userID uuid.UUID, req transport.ReviewRequest) (*models.Product, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: product_id is not a uuid", apperr.ErrValidation)
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", apperr.ErrValidation)
	}
	user, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.Repo.UpsertReview(ctx, productID, review.Input{
		UserID:  user.ID,
		Name:    user.Name,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), events.ReviewUpserted, nowOr(s.Now), map[string]any{
		"product_id": p.ID, "user_id": user.ID, "rating": req.Rating,
	})
	return p, nil
}

func (s *ProductService) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	return s.Repo.ListReviews(ctx, productID)
}

// DeleteReview removes a review. Only its author or an admin may do so.
func (s *ProductService) DeleteReview(ctx context.Context, productID, reviewID, userID uuid.UUID, isAdmin bool) (*models.Product, error) {
	if !isAdmin {
		reviews, err := s.Repo.ListReviews(ctx, productID)
		if err != nil {
			return nil, err
		}
		for _, r := range reviews {
			if r.ID == reviewID && r.UserID != userID {
				return nil, fmt.Errorf("%w: review %s belongs to another user", apperr.ErrForbidden, reviewID)
			}
		}
	}

	p, err := s.Repo.DeleteReview(ctx, productID, reviewID)
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), events.ReviewDeleted, nowOr(s.Now), map[string]any{
		"product_id": p.ID, "review_id": reviewID,
	})
	return p, nil
}
