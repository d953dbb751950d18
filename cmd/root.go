package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/trickle/internal/config"
	"github.com/tanq16/trickle/internal/output"
	"github.com/tanq16/trickle/internal/utils"
)

var (
	configPath      string
	debug           bool
	heapBudget      uint64
	storageRoot     string
	storageCapacity int64
	timeout         time.Duration
	kaTimeout       time.Duration
	userAgent       string
	proxyURL        string
	proxyUsername   string
	proxyPassword   string
	headers         []string
	token           string
	s3Profile       string
	socketBuffer    int

	cfg config.Config
)

var TrickleVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "trickle",
	Short:   "trickle is a memory-aware streaming downloader",
	Version: TrickleVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}
		utils.InitLogger(cfg.Debug)
		return nil
	},
	SilenceUsage: true,
}

// loadConfig reads the config file when given and applies the flags the
// user set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c := config.Default()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return c, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		c.Debug = debug
	}
	if flags.Changed("heap-budget") {
		c.HeapBudget = heapBudget
	}
	if flags.Changed("storage-root") {
		c.Storage.Root = storageRoot
	}
	if flags.Changed("storage-capacity") {
		c.Storage.Capacity = storageCapacity
	}
	if flags.Changed("timeout") {
		c.HTTP.Timeout = timeout
	}
	if flags.Changed("keep-alive-timeout") {
		c.HTTP.KATimeout = kaTimeout
	}
	if flags.Changed("user-agent") {
		c.HTTP.UserAgent = userAgent
	}
	if flags.Changed("token") {
		c.HTTP.Token = token
	}
	if flags.Changed("socket-buffer") {
		c.HTTP.SocketBuffer = socketBuffer
	}
	if flags.Changed("s3-profile") {
		c.S3Profile = s3Profile
	}
	if len(headers) > 0 {
		if c.HTTP.Headers == nil {
			c.HTTP.Headers = map[string]string{}
		}
		for k, v := range utils.ParseHeaderArgs(headers) {
			c.HTTP.Headers[k] = v
		}
	}
	if flags.Changed("proxy") {
		c.HTTP.ProxyURL = proxyURL
		// Check if proxy URL contains auth
		parsedProxy, err := u.Parse(proxyURL)
		if err == nil && parsedProxy.User != nil && proxyUsername == "" {
			c.HTTP.ProxyUsername = parsedProxy.User.Username()
			if password, set := parsedProxy.User.Password(); set {
				c.HTTP.ProxyPassword = password
			}
			parsedProxy.User = nil
			c.HTTP.ProxyURL = parsedProxy.String()
		}
	}
	if flags.Changed("proxy-username") {
		c.HTTP.ProxyUsername = proxyUsername
	}
	if flags.Changed("proxy-password") {
		c.HTTP.ProxyPassword = proxyPassword
	}
	return c, c.Validate()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")
	pf.Uint64Var(&heapBudget, "heap-budget", 0, "Emulate a device heap of this many bytes (0 probes the host)")
	pf.StringVarP(&storageRoot, "storage-root", "r", ".", "Directory downloads are stored under")
	pf.Int64Var(&storageCapacity, "storage-capacity", 0, "Storage capacity in bytes (0 means unlimited)")
	pf.DurationVarP(&timeout, "timeout", "t", 60*time.Second, "Connection timeout (eg. 5s, 10m)")
	pf.DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 60*time.Second, "Keep-alive timeout for client (eg. 10s, 1m)")
	pf.StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	pf.StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	pf.StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	pf.StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	pf.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'X-Device: esp-01'); can be specified multiple times")
	pf.StringVar(&token, "token", "", "Bearer token sent with HTTP requests")
	pf.IntVar(&socketBuffer, "socket-buffer", 0, "Socket send/receive buffer in bytes (0 keeps the OS default)")
	pf.StringVar(&s3Profile, "s3-profile", "", "AWS profile used for s3:// URLs")

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newMemoryCmd())
	rootCmd.AddCommand(newStorageCmd())
}
