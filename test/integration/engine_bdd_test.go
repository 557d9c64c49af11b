//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
	"github.com/eliteGoblin/focusd/focus_engine/internal/engine"
	"github.com/eliteGoblin/focusd/focus_engine/internal/infra"
)

var _ = Describe("Focus Engine", func() {
	var (
		tmpDir       string
		settingsPath string
		clock        *infra.FakeClock
		settings     *infra.JSONSettingsStore
		history      *infra.GormHistoryStore
		registry     *infra.FileRegistry
		eng          *engine.Engine
		events       <-chan domain.Event
		subID        string
		cancel       context.CancelFunc
		runDone      chan struct{}
		epoch        time.Time
	)

	writeSettingsFile := func(s domain.Settings) {
		data, err := json.Marshal(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(settingsPath, data, 0644)).To(Succeed())
	}

	// nextEvent blocks until the subscriber channel yields an event.
	nextEvent := func() domain.Event {
		var ev domain.Event
		Eventually(events, 2*time.Second).Should(Receive(&ev))
		return ev
	}

	// waitForEvent skips interleaved events until one of the wanted type
	// arrives.
	waitForEvent := func(eventType domain.EventType) domain.Event {
		for i := 0; i < 20; i++ {
			ev := nextEvent()
			if ev.Type == eventType {
				return ev
			}
		}
		Fail("event " + string(eventType) + " never arrived")
		return domain.Event{}
	}

	sendSample := func(app, path string, at time.Time) {
		eng.Samples() <- domain.WindowSample{
			Title:     app,
			OwnerName: app,
			OwnerPath: path,
			Timestamp: at,
		}
	}

	// drainLoop gives the engine goroutine time to process queued samples
	// before virtual time moves, so ticks observe a settled tracker.
	drainLoop := func() {
		time.Sleep(200 * time.Millisecond)
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "focusengine-integration-*")
		Expect(err).NotTo(HaveOccurred())

		settingsPath = filepath.Join(tmpDir, "settings.json")
		epoch = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
		clock = infra.NewFakeClock(epoch)
		settings = infra.NewJSONSettingsStore(settingsPath)
		registry = infra.NewFileRegistry(tmpDir)

		history, err = infra.NewGormHistoryStore(filepath.Join(tmpDir, "history.db"))
		Expect(err).NotTo(HaveOccurred())

		writeSettingsFile(domain.Settings{
			Whitelist: []string{"VSCode", "Terminal"},
		})

		session := domain.Session{PID: os.Getpid(), SessionID: "it-session", StartedAt: epoch}
		eng = engine.New(engine.DefaultConfig(), clock, settings, history, registry, session, zap.NewNop())
		subID, events = eng.Subscribe()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		runDone = make(chan struct{})
		go func() {
			defer close(runDone)
			_ = eng.Run(ctx)
		}()

		eng.SetEnabled(true)
		drainLoop()
	})

	AfterEach(func() {
		eng.Unsubscribe(subID)
		cancel()
		Eventually(runDone, 2*time.Second).Should(BeClosed())
		Expect(history.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("focus transitions", func() {
		It("raises an alert when leaving the whitelist and clears it on return", func() {
			sendSample("VSCode", "/apps/vscode", epoch)
			sendSample("Twitter", "/apps/twitter", epoch.Add(5*time.Second))

			show := waitForEvent(domain.EventShowAlert)
			Expect(show.AppName).To(Equal("Twitter"))
			Expect(show.AlertID).NotTo(BeEmpty())

			// Block indication accompanies the alert unless dim is configured.
			block := waitForEvent(domain.EventRequestBlockIndication)
			Expect(block.Type).To(Equal(domain.EventRequestBlockIndication))

			sendSample("VSCode", "/apps/vscode", epoch.Add(10*time.Second))
			clear := waitForEvent(domain.EventClearAlert)
			Expect(clear.AlertID).To(Equal(show.AlertID))
		})

		It("records the alert lifecycle in the history database", func() {
			sendSample("VSCode", "/apps/vscode", epoch)
			sendSample("Twitter", "/apps/twitter", epoch.Add(5*time.Second))
			show := waitForEvent(domain.EventShowAlert)

			Eventually(func() int {
				alerts, err := history.RecentAlerts(5)
				Expect(err).NotTo(HaveOccurred())
				return len(alerts)
			}, 2*time.Second).Should(Equal(1))

			eng.Dismiss(show.AlertID)
			waitForEvent(domain.EventClearAlert)

			Eventually(func() bool {
				alerts, err := history.RecentAlerts(5)
				Expect(err).NotTo(HaveOccurred())
				return len(alerts) == 1 && alerts[0].DismissedAt != nil
			}, 2*time.Second).Should(BeTrue())
		})

		It("auto-dismisses the alert after its timeout", func() {
			sendSample("VSCode", "/apps/vscode", epoch)
			sendSample("Twitter", "/apps/twitter", epoch.Add(5*time.Second))
			show := waitForEvent(domain.EventShowAlert)

			drainLoop()
			clock.Advance(show.AutoDismiss)

			clear := waitForEvent(domain.EventClearAlert)
			Expect(clear.AlertID).To(Equal(show.AlertID))
		})
	})

	Describe("rule evaluation", func() {
		BeforeEach(func() {
			writeSettingsFile(domain.Settings{
				Whitelist: []string{},
				Rules: []domain.Rule{{
					ID:      "switch-storm",
					Name:    "Switch storm",
					Enabled: true,
					Trigger: domain.TriggerCondition{
						Type:             domain.TriggerTabSwitches,
						Threshold:        2,
						TimeframeMinutes: 5,
					},
					Action: domain.RuleAction{Text: "Slow down", AutoDismiss: true, DismissTimeSeconds: 8},
				}},
			})
			drainLoop()
		})

		It("fires an eligible rule on the evaluation tick and records the cooldown", func() {
			sendSample("AppA", "/apps/a", epoch)
			sendSample("AppB", "/apps/b", epoch.Add(time.Second))
			sendSample("AppC", "/apps/c", epoch.Add(2*time.Second))
			drainLoop()

			clock.Advance(engine.DefaultConfig().RuleEvalInterval)

			show := waitForEvent(domain.EventShowAlert)
			Expect(show.Message).To(Equal("Slow down"))

			// The cooldown timestamp is written back into the settings file.
			Eventually(func() bool {
				loaded, err := settings.Load()
				Expect(err).NotTo(HaveOccurred())
				return len(loaded.Rules) == 1 && !loaded.Rules[0].LastTriggeredAt.IsZero()
			}, 2*time.Second).Should(BeTrue())
		})

		It("does not fire while monitoring is disabled", func() {
			eng.SetEnabled(false)
			drainLoop()

			sendSample("AppA", "/apps/a", epoch)
			sendSample("AppB", "/apps/b", epoch.Add(time.Second))
			sendSample("AppC", "/apps/c", epoch.Add(2*time.Second))
			drainLoop()

			clock.Advance(engine.DefaultConfig().RuleEvalInterval)

			Consistently(events, 500*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("session registry", func() {
		It("registers the running session for the status surface", func() {
			Eventually(func() *domain.RegistryEntry {
				entry, err := registry.Get()
				Expect(err).NotTo(HaveOccurred())
				return entry
			}, 2*time.Second).ShouldNot(BeNil())

			entry, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.PID).To(Equal(os.Getpid()))
			Expect(entry.SessionID).To(Equal("it-session"))
		})
	})

	Describe("counter persistence", func() {
		It("publishes and persists counter snapshots on the persist tick", func() {
			sendSample("VSCode", "/apps/vscode", epoch)
			sendSample("Twitter", "/apps/twitter", epoch.Add(10*time.Second))
			waitForEvent(domain.EventShowAlert)
			drainLoop()

			clock.Advance(engine.DefaultConfig().PersistInterval)

			update := waitForEvent(domain.EventCounterUpdate)
			Expect(update.Snapshot).NotTo(BeNil())
			Expect(update.Snapshot.CurrentApp).To(Equal("Twitter"))
			Expect(update.Snapshot.ScreenTimeMs).To(BeNumerically(">", 0))

			Eventually(func() *domain.CounterSnapshot {
				snap, err := history.LatestSnapshot()
				Expect(err).NotTo(HaveOccurred())
				return snap
			}, 2*time.Second).ShouldNot(BeNil())
		})
	})
})
