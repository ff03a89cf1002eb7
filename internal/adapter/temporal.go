package adapter

import (
	"context"

	"go.temporal.io/sdk/activity"
)

// Activity exposes activity metadata to executors
//
//go:generate mockgen -source=temporal.go -destination=../mocks/temporal.go -package=mocks -mock_names=Activity=MockActivity
type Activity interface {
	// GetInfo returns the info of the running activity
	GetInfo(ctx context.Context) activity.Info
}

type temporalActivity struct{}

// NewActivity returns an Activity backed by the Temporal SDK
func NewActivity() Activity {
	return temporalActivity{}
}

func (temporalActivity) GetInfo(ctx context.Context) activity.Info {
	return activity.GetInfo(ctx)
}
