package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")
	// ErrVehicleUnavailable is returned when a claim loses to another assignment
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
)

func dbError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrDatabase, err)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func dbErrorOrNil(err error) error {
	if err == nil {
		return nil
	}
	return dbError(err)
}
