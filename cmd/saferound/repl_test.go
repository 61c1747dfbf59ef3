package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/saferound/internal/estimator"
	"github.com/mmynk/saferound/internal/groupsync"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/notify"
	"github.com/mmynk/saferound/internal/reaction"
	"github.com/mmynk/saferound/internal/session"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func runScript(t *testing.T, script string, opts ...session.Option) string {
	t.Helper()
	var buf bytes.Buffer
	out := &syncWriter{w: &buf}
	opts = append([]session.Option{session.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	sess := session.New("alice", opts...)
	defer sess.Close()

	r := &repl{sess: sess, out: out}
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))
	return buf.String()
}

func TestREPLDrinksAndEstimate(t *testing.T) {
	out := runScript(t, "estimate\nbio 80 male\nstd\ndrink 6\nestimate\nundo\nundo\nundo\nquit\nstd\n",
		session.WithOracle(estimator.LocalOracle{}))

	assert.Contains(t, out, estimator.ErrBiometricsRequired.Error())
	assert.Contains(t, out, "Biometrics saved.")
	assert.Contains(t, out, "Logged 14.0 g")
	assert.Contains(t, out, "Logged 6.0 g")
	assert.Contains(t, out, "(2 drinks)")
	// 20 g for an 80 kg male at the moment of the first drink.
	assert.Contains(t, out, "BAC 0.04")
	assert.Contains(t, out, "Removed 6.0 g, 1 left")
	assert.Contains(t, out, "Nothing to undo.")
	assert.Equal(t, 2, strings.Count(out, "Logged"), "commands after quit must not run")
}

func TestREPLScanFallsBackToStandardDrink(t *testing.T) {
	out := runScript(t, "scan {\"alcohol_grams\": 9.5}\nscan not json\nquit\n")

	assert.Contains(t, out, "Logged 9.5 g")
	assert.Contains(t, out, "Logged 14.0 g")
}

func TestREPLErrors(t *testing.T) {
	out := runScript(t, "drink\ndrink abc\nbio 80\nbio 80 other\njoin\nalert\nfrobnicate\n")

	for _, want := range []string{
		"usage: drink GRAMS",
		`invalid grams "abc"`,
		"usage: bio KG SEX",
		"usage: join CODE",
		"usage: alert USER_ID",
		`unknown command "frobnicate"`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestREPLOfflineGroups(t *testing.T) {
	out := runScript(t, "join 12a45\njoin 123456\nnotify\n",
		session.WithBiometrics(models.UserBiometrics{WeightKg: 70, Sex: models.SexFemale}))

	assert.Contains(t, out, groupsync.ErrInvalidCode.Error())
	assert.Contains(t, out, session.ErrOffline.Error())
	assert.Contains(t, out, notify.ErrNoGroup.Error())
}

func TestRenderSnapshot(t *testing.T) {
	trials := make([]models.ReactionTrial, models.ReactionTrialsPerSession)
	for i, ms := range []int64{250, 300, 280, 260, 270} {
		trials[i] = models.ReactionTrial{LatencyMs: ms}
	}

	tests := []struct {
		name string
		snap reaction.Snapshot
		want string
	}{
		{"idle", reaction.Snapshot{State: reaction.Idle}, "Reaction test 0/5"},
		{"waiting", reaction.Snapshot{State: reaction.Waiting}, "Wait for it"},
		{"ready", reaction.Snapshot{State: reaction.Ready}, "GO!"},
		{"scored", reaction.Snapshot{State: reaction.Ready, Pausing: true, ScoreMs: 250, Trials: trials[:1]}, "250 ms"},
		{"early", reaction.Snapshot{State: reaction.Early}, "Too early!"},
		{"finished", reaction.Snapshot{State: reaction.Finished, Trials: trials}, "Average 272 ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, renderSnapshot(tt.snap), tt.want)
		})
	}
}

func TestRenderResultAndToast(t *testing.T) {
	res := estimator.Result{
		Reading:        models.BACReading{Value: 0.2314},
		Guidance:       "Stop drinking.",
		Status:         models.BACStatusRed,
		NotifyGuardian: true,
	}
	out := renderResult(res)
	assert.Contains(t, out, "BAC 0.23")
	assert.Contains(t, out, "Coma is possible")
	assert.Contains(t, out, "Stop drinking.")
	assert.Contains(t, out, "notifying your group")

	assert.Contains(t, renderToast(notify.Toast{Message: "Alert sent to Bob.", OK: true}), "Alert sent to Bob.")
}

func TestRenderRoster(t *testing.T) {
	out := renderRoster(models.GroupRoster{Code: "123456", Members: []models.Member{
		{UserID: "u1", Name: "Alice Smith"},
		{UserID: "u2", FirstName: "Bob"},
		{UserID: "u3"},
	}})
	assert.Contains(t, out, "Group 123456")
	assert.Contains(t, out, "Alice Smith")
	assert.Contains(t, out, "Bob (u2)")
	assert.Contains(t, out, "u3 (u3)")

	assert.Contains(t, renderRoster(models.GroupRoster{Code: "654321"}), "no members loaded")
}
