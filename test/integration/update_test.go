//go:build integration

package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/coder/quartz"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
	"github.com/eliteGoblin/focusd/prod_mon/internal/infra"
	"github.com/eliteGoblin/focusd/prod_mon/test/fixtures"
)

var _ = Describe("Self update", func() {
	var (
		tmpDir    string
		artifact  string
		release   *fixtures.ReleaseServer
		webhooks  *fixtures.WebhookRecorder
		slot      *infra.BackupSlot
		updater   *infra.Updater
		transport *infra.WebhookTransport
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "prodmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		artifact = filepath.Join(tmpDir, "bin", "prodmon")
		Expect(os.MkdirAll(filepath.Dir(artifact), 0o755)).To(Succeed())
		Expect(os.WriteFile(artifact, []byte("prodmon build 1.0.0"), 0o755)).To(Succeed())

		release = fixtures.NewReleaseServer("1.1.0", []byte("prodmon build 1.1.0"))
		webhooks = fixtures.NewWebhookRecorder()
		transport = infra.NewWebhookTransport(map[domain.Channel]string{
			domain.ChannelConsole: webhooks.ChannelURL("console"),
		}, zap.NewNop())

		remote := infra.NewHTTPRemote(release.VersionURL(), release.PayloadURL())
		slot = infra.NewBackupSlot(filepath.Join(tmpDir, "state", "prodmon.bak"), zap.NewNop())
		updater = infra.NewUpdater(artifact, "1.0.0", remote, remote, slot, transport, quartz.NewReal(), zap.NewNop())
	})

	AfterEach(func() {
		release.Close()
		webhooks.Close()
		os.RemoveAll(tmpDir)
	})

	readArtifact := func() string {
		data, err := os.ReadFile(artifact)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	Context("when a newer version is published", func() {
		It("should install it and keep the previous build in the backup slot", func() {
			result := updater.Apply(context.Background())

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Applied).To(BeTrue())
			Expect(result.Stage).To(Equal(domain.StageRestartSchedule))
			Expect(readArtifact()).To(Equal("prodmon build 1.1.0"))

			backup, err := os.ReadFile(slot.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(backup)).To(Equal("prodmon build 1.0.0"))

			Expect(webhooks.Contents("console")).To(ContainElement("Current version: 1.0.0 | Remote: 1.1.0"))
			Expect(webhooks.Contents("console")).To(ContainElement(ContainSubstring("Update installed: 1.0.0 -> 1.1.0")))
		})
	})

	Context("when the published version is not newer", func() {
		It("should not download anything", func() {
			release.Publish("1.0.0", []byte("same"))

			result := updater.Apply(context.Background())

			Expect(result.Applied).To(BeFalse())
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(release.Downloads()).To(BeZero())
			Expect(readArtifact()).To(Equal("prodmon build 1.0.0"))
		})
	})

	Context("when the artifact download fails", func() {
		It("should leave the running artifact untouched", func() {
			release.FailPayload(http.StatusBadGateway)

			result := updater.Apply(context.Background())

			Expect(result.Stage).To(Equal(domain.StageDownload))
			Expect(result.Err).To(MatchError(ContainSubstring("502")))
			Expect(result.Applied).To(BeFalse())
			Expect(readArtifact()).To(Equal("prodmon build 1.0.0"))
		})
	})

	Context("when the published payload is empty", func() {
		It("should reject it", func() {
			release.Publish("1.1.0", nil)

			result := updater.Apply(context.Background())

			Expect(result.Err).To(MatchError(infra.ErrEmptyPayload))
			Expect(readArtifact()).To(Equal("prodmon build 1.0.0"))
		})
	})
})
