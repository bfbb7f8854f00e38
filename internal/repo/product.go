package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/review"
)

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func orderedReviews(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// ListProducts returns one page of products matching q together with the
// unfiltered total and the number of matches across all pages.
func (r *GormRepo) ListProducts(ctx context.Context, q query.Products) ([]models.Product, int64, int64, error) {
	db := r.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, 0, translate(err, "count products")
	}

	var filtered int64
	if err := q.Filter(db.Model(&models.Product{})).Count(&filtered).Error; err != nil {
		return nil, 0, 0, translate(err, "count filtered products")
	}

	items := make([]models.Product, 0, query.PageSize)
	if err := q.Paginate(q.Filter(db.Model(&models.Product{}))).
		Preload("Images", orderedImages).
		Find(&items).Error; err != nil {
		return nil, 0, 0, translate(err, "list products")
	}

	return items, total, filtered, nil
}

func (r *GormRepo) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, translate(err, "count products")
	}
	return n, nil
}

func (r *GormRepo) AllProducts(ctx context.Context) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Preload("Images", orderedImages).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, translate(err, "list products")
	}
	return items, nil
}

// ProductsByIDs loads the given products keeping the order of ids. Unknown ids
// are skipped.
func (r *GormRepo) ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var found []models.Product
	if err := r.DB.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("id IN ?", ids).
		Find(&found).Error; err != nil {
		return nil, translate(err, "load products")
	}

	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).
		Preload("Images", orderedImages).
		Preload("Reviews", orderedReviews).
		First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("product %s", id))
	}
	return &p, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return translate(r.DB.WithContext(ctx).Create(p).Error, "create product")
}

// ProductChanges is a partial product update. Nil fields keep their stored
// value. Images replace the stored set only when ReplaceImages is set.
type ProductChanges struct {
	Name          *string
	Description   *string
	Price         *float64
	Category      *string
	Stock         *int
	Images        []models.ProductImage
	ReplaceImages bool
}

func (c ProductChanges) columns() map[string]any {
	cols := map[string]any{}
	if c.Name != nil {
		cols["name"] = *c.Name
	}
	if c.Description != nil {
		cols["description"] = *c.Description
	}
	if c.Price != nil {
		cols["price"] = *c.Price
	}
	if c.Category != nil {
		cols["category"] = *c.Category
	}
	if c.Stock != nil {
		cols["stock"] = *c.Stock
	}
	return cols
}

// UpdateProduct writes only the columns named in ch and returns the product
// as stored afterwards. Concurrent stock decrements are not overwritten
// unless ch sets the stock itself.
func (r *GormRepo) UpdateProduct(ctx context.Context, id uuid.UUID, ch ProductChanges) (*models.Product, error) {
	var out models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found int64
		if cols := ch.columns(); len(cols) > 0 {
			res := tx.Model(&models.Product{}).Where("id = ?", id).Updates(cols)
			if res.Error != nil {
				return translate(res.Error, "update product")
			}
			found = res.RowsAffected
		} else if err := tx.Model(&models.Product{}).Where("id = ?", id).Count(&found).Error; err != nil {
			return translate(err, "find product")
		}
		if found == 0 {
			return fmt.Errorf("%w: product %s", apperr.ErrNotFound, id)
		}

		if ch.ReplaceImages {
			if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
				return translate(err, "delete product images")
			}
			for i := range ch.Images {
				ch.Images[i].ProductID = id
			}
			if len(ch.Images) > 0 {
				if err := tx.Create(&ch.Images).Error; err != nil {
					return translate(err, "create product images")
				}
			}
		}

		err := tx.Preload("Images", orderedImages).
			Preload("Reviews", orderedReviews).
			First(&out, "id = ?", id).Error
		return translate(err, fmt.Sprintf("product %s", id))
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return translate(err, "delete reviews")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return translate(err, "delete product images")
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error, "delete product")
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: product %s", apperr.ErrNotFound, id)
		}
		return nil
	})
}

func (r *GormRepo) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	db := r.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return nil, translate(err, "find product")
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: product %s", apperr.ErrNotFound, productID)
	}

	reviews := []models.Review{}
	if err := orderedReviews(db.Where("product_id = ?", productID)).Find(&reviews).Error; err != nil {
		return nil, translate(err, "list reviews")
	}
	return reviews, nil
}

// lockProduct loads the product row for update together with its reviews.
func lockProduct(tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("product %s", id))
	}
	if err := orderedReviews(tx.Where("product_id = ?", id)).Find(&p.Reviews).Error; err != nil {
		return nil, translate(err, "load reviews")
	}
	return &p, nil
}

func saveSummary(tx *gorm.DB, p *models.Product, reviews []models.Review) error {
	s := review.Summarize(reviews)
	p.Reviews = reviews
	p.Ratings = s.Average
	p.NumOfReviews = s.Count
	err := tx.Model(&models.Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{"ratings": s.Average, "num_of_reviews": s.Count}).Error
	return translate(err, "update ratings")
}

// UpsertReview creates or replaces the caller's review and refreshes the
// product's rating summary under a row lock.
func (r *GormRepo) UpsertReview(ctx context.Context, productID uuid.UUID, in review.Input) (*models.Product, error) {
	var out *models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProduct(tx, productID)
		if err != nil {
			return err
		}

		reviews, idx, created := review.Upsert(p.Reviews, productID, in)
		if created {
			if err := tx.Create(&reviews[idx]).Error; err != nil {
				return translate(err, "create review")
			}
		} else {
			err := tx.Model(&models.Review{}).
				Where("id = ?", reviews[idx].ID).
				Updates(map[string]any{"rating": in.Rating, "comment": in.Comment}).Error
			if err != nil {
				return translate(err, "update review")
			}
		}

		if err := saveSummary(tx, p, reviews); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) DeleteReview(ctx context.Context, productID, reviewID uuid.UUID) (*models.Product, error) {
	var out *models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProduct(tx, productID)
		if err != nil {
			return err
		}

		reviews, ok := review.Remove(p.Reviews, reviewID)
		if !ok {
			return fmt.Errorf("%w: review %s", apperr.ErrNotFound, reviewID)
		}
		if err := tx.Delete(&models.Review{}, "id = ?", reviewID).Error; err != nil {
			return translate(err, "delete review")
		}

		if err := saveSummary(tx, p, reviews); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
