package testutil

import (
	"context"
	"testing"

	"github.com/smith3v/study-tracker/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	db.DB = gdb

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access underlying DB: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
		db.DB = nil
	})
}

// CreateUser resolves subject into a stored user.
func CreateUser(t *testing.T, subject string) db.User {
	t.Helper()
	user, err := db.ResolveUser(context.Background(), subject, "")
	if err != nil {
		t.Fatalf("failed to create user %q: %v", subject, err)
	}
	return user
}

// CreateFlashcard stores a flashcard owned by userID.
func CreateFlashcard(t *testing.T, userID uint, publicID, front, back string) db.Flashcard {
	t.Helper()
	card := db.Flashcard{PublicID: publicID, UserID: userID, Front: front, Back: back}
	if err := db.DB.Create(&card).Error; err != nil {
		t.Fatalf("failed to create flashcard %q: %v", publicID, err)
	}
	return card
}
