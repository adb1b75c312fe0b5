package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/config"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/scheduler"
)

func TestNewRolloverSchedule_DefaultsToWeeklyCron(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"APP_TIMEZONE": "Asia/Almaty"})
	require.NoError(t, err)

	s, err := newRolloverSchedule(cfg.League, cfg.App.Location)
	require.NoError(t, err)
	assert.Equal(t, scheduler.WeeklyRollover, s.String())

	// Sunday evening local time fires five minutes into Monday, local time.
	sunday := time.Date(2025, 3, 16, 23, 0, 0, 0, cfg.App.Location)
	want := time.Date(2025, 3, 17, 0, 5, 0, 0, cfg.App.Location)
	assert.True(t, want.Equal(s.Next(sunday)), "next run %v", s.Next(sunday))
}

func TestNewRolloverSchedule_IntervalWhenCronOff(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"LEAGUE_ROLLOVER_CRON":     config.RolloverCronOff,
		"LEAGUE_ROLLOVER_INTERVAL": "15m",
	})
	require.NoError(t, err)

	s, err := newRolloverSchedule(cfg.League, cfg.App.Location)
	require.NoError(t, err)
	assert.Equal(t, "@every 15m0s", s.String())
}

func TestNewRolloverSchedule_RejectsMalformedCron(t *testing.T) {
	_, err := newRolloverSchedule(config.LeagueConfig{RolloverCron: "every monday"}, time.UTC)
	assert.Error(t, err)
}
