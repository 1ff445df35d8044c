package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ResolveUser returns the user for subject, creating it on first sight.
// An empty subject is rejected with ErrNotAuthenticated.
func ResolveUser(ctx context.Context, subject, displayName string) (User, error) {
	const op = "db.ResolveUser"
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return User{}, NewError(op, ErrNotAuthenticated)
	}
	if err := Ready(op); err != nil {
		return User{}, err
	}

	var user User
	err := DB.WithContext(ctx).
		Where(User{Subject: subject}).
		Attrs(User{DisplayName: displayName}).
		FirstOrCreate(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another request created the row between our select and insert.
		err = DB.WithContext(ctx).Where("subject = ?", subject).First(&user).Error
	}
	if err != nil {
		return User{}, Wrap(op, err)
	}
	return user, nil
}

// LookupUser finds an existing user without creating one.
func LookupUser(ctx context.Context, subject string) (User, error) {
	const op = "db.LookupUser"
	if err := Ready(op); err != nil {
		return User{}, err
	}
	var user User
	if err := DB.WithContext(ctx).Where("subject = ?", subject).First(&user).Error; err != nil {
		return User{}, Wrap(op, err)
	}
	return user, nil
}
