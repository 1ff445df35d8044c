package flashcards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
	"gorm.io/gorm"
)

var ErrInvalidFlashcard = errors.New("invalid flashcard")

var validate = validator.New()

type CreateInput struct {
	Front string `json:"front" validate:"required,max=500"`
	Back  string `json:"back" validate:"required,max=500"`
	Topic string `json:"topic" validate:"max=100"`
}

func (in CreateInput) normalized() CreateInput {
	return CreateInput{
		Front: strings.TrimSpace(in.Front),
		Back:  strings.TrimSpace(in.Back),
		Topic: strings.TrimSpace(in.Topic),
	}
}

// List returns the caller's flashcards, oldest first. An optional topic
// narrows the result.
func List(ctx context.Context, creds auth.Credentials, topic string) ([]db.Flashcard, error) {
	const op = "flashcards.List"
	user, err := resolve(ctx, op, creds)
	if err != nil {
		return nil, err
	}
	query := db.DB.WithContext(ctx).Where("user_id = ?", user.ID)
	if topic = strings.TrimSpace(topic); topic != "" {
		query = query.Where("topic = ?", topic)
	}
	var cards []db.Flashcard
	if err := query.Order("id ASC").Find(&cards).Error; err != nil {
		return nil, db.Wrap(op, err)
	}
	return cards, nil
}

func Create(ctx context.Context, creds auth.Credentials, in CreateInput) (db.Flashcard, error) {
	const op = "flashcards.Create"
	in = in.normalized()
	if err := validate.Struct(in); err != nil {
		return db.Flashcard{}, fmt.Errorf("%w: %v", ErrInvalidFlashcard, err)
	}
	user, err := resolve(ctx, op, creds)
	if err != nil {
		return db.Flashcard{}, err
	}

	publicID, err := gonanoid.New()
	if err != nil {
		return db.Flashcard{}, fmt.Errorf("failed to generate flashcard id: %w", err)
	}
	card := db.Flashcard{
		PublicID: publicID,
		UserID:   user.ID,
		Front:    in.Front,
		Back:     in.Back,
		Topic:    in.Topic,
	}
	if err := db.DB.WithContext(ctx).Create(&card).Error; err != nil {
		return db.Flashcard{}, db.Wrap(op, err)
	}
	logger.Debug("flashcard created", "user_id", user.ID, "public_id", publicID)
	return card, nil
}

// Delete removes the caller's flashcard together with its review record.
func Delete(ctx context.Context, creds auth.Credentials, publicID string) error {
	const op = "flashcards.Delete"
	user, err := resolve(ctx, op, creds)
	if err != nil {
		return err
	}
	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card db.Flashcard
		if err := tx.Where("public_id = ? AND user_id = ?", publicID, user.ID).First(&card).Error; err != nil {
			return err
		}
		if err := tx.Where("flashcard_id = ?", card.ID).Delete(&db.ReviewRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&card).Error
	})
	return db.Wrap(op, err)
}

// Random picks up to limit of the user's flashcards in random order.
func Random(ctx context.Context, userID uint, limit int) ([]db.Flashcard, error) {
	const op = "flashcards.Random"
	if err := db.Ready(op); err != nil {
		return nil, err
	}
	var cards []db.Flashcard
	if err := db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("RANDOM()").
		Limit(limit).
		Find(&cards).Error; err != nil {
		return nil, db.Wrap(op, err)
	}
	return cards, nil
}

// ByIDs loads the user's flashcards keyed by ID; missing IDs are skipped.
func ByIDs(ctx context.Context, userID uint, ids []uint) (map[uint]db.Flashcard, error) {
	const op = "flashcards.ByIDs"
	if err := db.Ready(op); err != nil {
		return nil, err
	}
	result := make(map[uint]db.Flashcard, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var cards []db.Flashcard
	if err := db.DB.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&cards).Error; err != nil {
		return nil, db.Wrap(op, err)
	}
	for _, card := range cards {
		result[card.ID] = card
	}
	return result, nil
}

func Count(ctx context.Context, userID uint) (int64, error) {
	const op = "flashcards.Count"
	if err := db.Ready(op); err != nil {
		return 0, err
	}
	var count int64
	if err := db.DB.WithContext(ctx).Model(&db.Flashcard{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, db.Wrap(op, err)
	}
	return count, nil
}

func resolve(ctx context.Context, op string, creds auth.Credentials) (db.User, error) {
	if !creds.Authenticated() {
		return db.User{}, db.NewError(op, db.ErrNotAuthenticated)
	}
	if err := db.Ready(op); err != nil {
		return db.User{}, err
	}
	return creds.User(ctx)
}
