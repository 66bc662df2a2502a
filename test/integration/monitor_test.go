//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/coder/quartz"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
	"github.com/eliteGoblin/focusd/prod_mon/internal/infra"
	"github.com/eliteGoblin/focusd/prod_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/prod_mon/test/fixtures"
)

var _ = Describe("Monitor session", func() {
	var (
		webhooks *fixtures.WebhookRecorder
		monitor  *daemon.Monitor
	)

	BeforeEach(func() {
		webhooks = fixtures.NewWebhookRecorder()
		transport := infra.NewWebhookTransport(map[domain.Channel]string{
			domain.ChannelConsole:     webhooks.ChannelURL("console"),
			domain.ChannelData:        webhooks.ChannelURL("data"),
			domain.ChannelScreenshots: webhooks.ChannelURL("screenshots"),
		}, zap.NewNop())

		clock := quartz.NewReal()
		ledger := usecase.NewActivityLedger(usecase.DefaultLedgerCapacity, clock)
		aggregator := usecase.NewProductivityAggregator(usecase.DefaultAggregatorConfig(), clock, transport, zap.NewNop())
		// no targets: every presence check reports running
		presence := usecase.NewPresenceMonitor(infra.NewProcessLister(), transport, nil, usecase.AssumeRunning, zap.NewNop())

		config := daemon.DefaultMonitorConfig()
		config.Version = "1.0.0"
		config.PresenceInterval = 50 * time.Millisecond

		monitor = daemon.NewMonitor(config, daemon.MonitorDeps{
			Transport:  transport,
			Ledger:     ledger,
			Aggregator: aggregator,
			Presence:   presence,
		}, clock, zap.NewNop())
	})

	AfterEach(func() {
		webhooks.Close()
	})

	It("should announce the session on the console webhook and close it with a summary", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- monitor.Run(ctx) }()

		Eventually(monitor.Running).Should(BeTrue())
		Eventually(func() []string { return webhooks.Contents("console") }).
			Should(ContainElement(HavePrefix("Monitor started v1.0.0")))
		Expect(monitor.MonitoringActive()).To(BeTrue())

		monitor.HandleClick(domain.ClickInput{Button: "left", Pressed: true})
		monitor.HandleClick(domain.ClickInput{Button: "left", Pressed: true})

		cancel()
		Eventually(done, 10*time.Second).Should(Receive(BeNil()))

		Expect(monitor.Running()).To(BeFalse())
		Expect(webhooks.Contents("console")).To(ContainElement(ContainSubstring("2 clicks total")))
	})

	It("should post the productivity report to the data webhook", func() {
		Expect(monitor.Start(context.Background())).To(Succeed())
		DeferCleanup(func() { _ = monitor.Shutdown() })

		monitor.SendReport(context.Background())
		Eventually(func() []fixtures.Post { return webhooks.Posts("data") }).Should(HaveLen(1))
		Expect(webhooks.Posts("data")[0].Content).To(HavePrefix("**Productivity report - "))
	})
})
