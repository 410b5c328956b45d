package sync

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"go.uber.org/zap"
)

// RetentionPeriod is an ISO 8601 duration such as PT1H or P1Y2M10DT2H30M.
// Calendar parts are applied with time.AddDate, clock parts as a duration.
type RetentionPeriod struct {
	Years, Months, Days int
	Clock               time.Duration
}

// maxRetentionDays bounds the calendar parts so AddDate stays in range.
const maxRetentionDays = 10000 * 366

func ParseRetentionPeriod(s string) (RetentionPeriod, error) {
	var result RetentionPeriod
	invalid := func(reason string) (RetentionPeriod, error) {
		return RetentionPeriod{}, fmt.Errorf("invalid retention period %q: %s", s, reason)
	}
	// a period has to end on a designator, "P", "PT" and "P1DT" carry none
	if s == "" || !strings.ContainsRune("YMWDHS", rune(s[len(s)-1])) {
		return invalid("no designator at the end")
	}
	d, err := duration.Parse(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return RetentionPeriod{}, fmt.Errorf("invalid retention period %q %w", s, err)
	}
	if d.Negative {
		return invalid("negative")
	}

	calendar := []struct {
		value float64
		days  float64
		into  *int
	}{
		{d.Years, 366, &result.Years},
		{d.Months, 31, &result.Months},
		{d.Weeks*7 + d.Days, 1, &result.Days},
	}
	for _, part := range calendar {
		if part.value != math.Trunc(part.value) {
			return invalid("fractional calendar parts are not supported")
		}
		if part.value*part.days > maxRetentionDays {
			return invalid("too long")
		}
		*part.into = int(part.value)
	}

	seconds := d.Hours*3600 + d.Minutes*60 + d.Seconds
	if seconds > float64(math.MaxInt64/int64(time.Second)) {
		return invalid("clock part too long")
	}
	result.Clock = time.Duration(seconds * float64(time.Second))
	return result, nil
}

// Before returns the moment the period ends at t, counted backwards.
func (p RetentionPeriod) Before(t time.Time) time.Time {
	return t.AddDate(-p.Years, -p.Months, -p.Days).Add(-p.Clock)
}

// CleanUpConfiguration names the entity to clear and how long its objects live.
type CleanUpConfiguration struct {
	ObjectType      string `yaml:"objectType" json:"objectType"`
	RetentionPeriod string `yaml:"retentionPeriod" json:"retentionPeriod"`
}

// CleanUp removes objects of an entity that outlived their retention period.
type CleanUp struct {
	*SyncContext
}

// Handle deletes the expired objects and returns how many went.
func (c CleanUp) Handle(ctx context.Context, configuration CleanUpConfiguration) (int, error) {
	entity, err := c.Registry.FindEntity(configuration.ObjectType)
	if err != nil {
		return 0, err
	}
	period, err := ParseRetentionPeriod(configuration.RetentionPeriod)
	if err != nil {
		return 0, err
	}
	before := period.Before(c.Now())
	deleted, err := c.Store.DeleteObjectsCreatedBefore(ctx, entity.Reference, before)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up %s: %w", entity.Reference, err)
	}
	c.Metrics.AddCleanedUp(entity.Reference, deleted)
	c.Logger.Info("cleaned up objects",
		zap.String("entity", entity.Reference),
		zap.Time("before", before),
		zap.Int("deleted", deleted))
	return deleted, nil
}

// Run returns data on success and {} on failure.
func (c CleanUp) Run(ctx context.Context, data []byte, configuration CleanUpConfiguration) []byte {
	if _, err := c.Handle(ctx, configuration); err != nil {
		c.Logger.Error("clean up failed", zap.String("entity", configuration.ObjectType), zap.Error(err))
		return emptyResult
	}
	return data
}
