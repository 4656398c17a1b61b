package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/wso2/copilotsse/cmd/copilotsse/config"
	"github.com/wso2/copilotsse/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	// run executes the config command under a root carrying the global
	// --config-dir flag, pointed at tmpDir.
	run := func(args ...string) error {
		root := &cobra.Command{Use: "copilotsse", SilenceErrors: true, SilenceUsage: true}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"--config-dir", tmpDir, "config"}, args...))
		return root.Execute()
	}

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "proxy.upstream", "https://copilot.example.com")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Proxy.Upstream).To(Equal("https://copilot.example.com"))
		})

		It("stores comma separated brokers as a list", func() {
			Expect(run("set", "publisher.kafka_brokers", "k1:9092, k2:9092")).To(Succeed())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Publisher.KafkaBrokers).To(Equal([]string{"k1:9092", "k2:9092"}))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects invalid storage drivers", func() {
			Expect(run("set", "storage.driver", "mongo")).To(HaveOccurred())
		})

		It("rejects invalid frame limits", func() {
			Expect(run("set", "decoder.max_frame_bytes", "not-a-number")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "proxy.upstream")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "decoder.strict", "true")).To(Succeed())
			out.Reset()

			Expect(run("get", "decoder.strict")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("decoder.strict"))
			Expect(out.String()).To(ContainSubstring("true"))
		})

		It("reports unset keys", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key with defaults when no config exists", func() {
			Expect(run("list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
			Expect(out.String()).To(ContainSubstring(`"inmemory"`))
		})

		It("shows values that were set", func() {
			Expect(run("set", "proxy.listen", ":9999")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`":9999"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
