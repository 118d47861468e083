//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/quickhost/internal/orchestration"
	"github.com/imamik/quickhost/internal/util/naming"
)

var _ = Describe("App lifecycle", Ordered, func() {
	var (
		user    *orchestration.Orchestrator
		app     string
		keyFile string
	)

	BeforeAll(func() {
		app = fmt.Sprintf("e2e-%d", time.Now().Unix())
		keyFile = filepath.Join(keyDir, app)
		user = orchestrator(naming.Profile())
	})

	It("makes two hosts", func() {
		res, err := user.Create(ctx, orchestration.CreateParams{
			App:         app,
			HostCount:   2,
			KeyFile:     keyFile,
			WaitForPort: true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Report.OK()).To(BeTrue())
		Expect(res.Compute.Instances).To(HaveLen(2))
		Expect(res.Compute.Connections).To(HaveLen(2))
		Expect(keyFile + ".pem").To(BeAnExistingFile())
	})

	It("refuses a second batch", func() {
		res, err := user.Create(ctx, orchestration.CreateParams{App: app, KeyFile: keyFile})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Compute).To(BeNil())
	})

	It("describes the app", func() {
		d, err := user.Describe(ctx, orchestration.DescribeParams{App: app, KeyFile: keyFile})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Caller.IsPrincipal()).To(BeTrue())
		Expect(d.KeyPair.LocalMatches).To(BeTrue())
		Expect(d.Firewall.Ports).To(ContainElement("22/tcp"))
		Expect(d.Instances).To(HaveLen(2))
	})

	It("lists the app", func() {
		apps, err := user.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(apps).To(ContainElement(app + " (2)"))
	})

	It("opens another port", func() {
		res, err := user.Update(ctx, orchestration.UpdateParams{App: app, Ports: []int32{80}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Rules.Ports).To(ConsistOf("22/tcp", "80/tcp"))
	})

	It("destroys the app twice", func() {
		for range 2 {
			report, err := user.Destroy(ctx, orchestration.DestroyParams{App: app, KeyFile: keyFile})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OK()).To(BeTrue())
		}
		_, err := os.Stat(keyFile + ".pem")
		Expect(os.IsNotExist(err)).To(BeTrue())

		d, err := user.Describe(ctx, orchestration.DescribeParams{App: app, KeyFile: keyFile})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Exists()).To(BeFalse())
	})
})
