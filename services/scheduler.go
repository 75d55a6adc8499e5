// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/VALX-GALAXY/SportsInn-sub001/models"
)

// StartDeadlineSweeper closes tournaments whose deadline has passed so
// listings stop showing them as open. The status flip is informational;
// Apply checks the deadline itself either way.
func (s *TournamentService) StartDeadlineSweeper() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: close tournaments past their deadline
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()
			res := s.DB.Model(&models.Tournament{}).
				Where("status = ? AND deadline IS NOT NULL AND deadline <= ?", models.TournamentStatusOpen, now).
				Update("status", models.TournamentStatusClosed)
			if res.Error != nil {
				log.Printf("[Sweeper] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ Closed %d tournament(s) past deadline", res.RowsAffected)
				s.invalidateListing(context.Background())
			}
		}),
	)
}
