package review

import (
	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
)

type Input struct {
	UserID  uuid.UUID
	Name    string
	Rating  int
	Comment string
}

type Summary struct {
	Average float64
	Count   int
}

// Upsert applies in to the review list. A user's existing review is
// overwritten in place; otherwise a new review is appended. The returned
// index points at the written review.
func Upsert(reviews []models.Review, productID uuid.UUID, in Input) (out []models.Review, idx int, created bool) {
	out = make([]models.Review, len(reviews), len(reviews)+1)
	copy(out, reviews)

	for i := range out {
		if out[i].UserID == in.UserID {
			out[i].Rating = in.Rating
			out[i].Comment = in.Comment
			return out, i, false
		}
	}

	out = append(out, models.Review{
		ID:        uuid.New(),
		ProductID: productID,
		UserID:    in.UserID,
		Name:      in.Name,
		Rating:    in.Rating,
		Comment:   in.Comment,
	})
	return out, len(out) - 1, true
}

// Remove drops the review with the given id. ok is false when no review matched.
func Remove(reviews []models.Review, reviewID uuid.UUID) (out []models.Review, ok bool) {
	out = make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		if r.ID == reviewID {
			ok = true
			continue
		}
		out = append(out, r)
	}
	return out, ok
}

// Summarize recomputes the average rating and count. An empty list yields 0/0.
func Summarize(reviews []models.Review) Summary {
	if len(reviews) == 0 {
		return Summary{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return Summary{
		Average: float64(sum) / float64(len(reviews)),
		Count:   len(reviews),
	}
}
