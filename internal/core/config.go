package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/thongnm19089/share-fb/internal/jobs"
	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/utils"
)

// Config 应用程序配置
type Config struct {
	Logging     utils.LogConfig      `mapstructure:"logging"`
	Browser     BrowserConfig        `mapstructure:"browser"`
	Crawl       models.CrawlSettings `mapstructure:"crawl"`
	Jobs        JobsConfig           `mapstructure:"jobs"`
	Store       StoreConfig          `mapstructure:"store"`
	Scheduler   SchedulerConfig      `mapstructure:"scheduler"`
	Server      ServerConfig         `mapstructure:"server"`
	TargetsFile string               `mapstructure:"targets_file"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Driver                 string            `mapstructure:"driver"` // rod 或 static
	Headless               bool              `mapstructure:"headless"`
	Bin                    string            `mapstructure:"bin"`
	UserAgent              string            `mapstructure:"user_agent"`
	AcceptLanguage         string            `mapstructure:"accept_language"`
	Headers                map[string]string `mapstructure:"headers"`
	MaxSessions            int               `mapstructure:"max_sessions"`
	SerializePerCredential bool              `mapstructure:"serialize_per_credential"`
	NavigationTimeout      time.Duration     `mapstructure:"navigation_timeout"`
}

// JobsConfig 任务配置
type JobsConfig struct {
	jobs.Config `mapstructure:",squash"`
	Workers     int `mapstructure:"workers"`
}

// StoreConfig 存储配置
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory, postgres, sqlite3
	DSN    string `mapstructure:"dsn"`
}

// SchedulerConfig 自动扫描配置
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timezone string        `mapstructure:"timezone"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoadConfig 加载配置文件
// 查找顺序: 指定文件 → ./configs → . → ~/.hotpost; 环境变量 HOTPOST_* 覆盖文件中的值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".hotpost"))
		}
	}

	v.SetEnvPrefix("HOTPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	logDefaults := utils.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.log_dir", logDefaults.LogDir)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
	v.SetDefault("logging.compress", logDefaults.Compress)

	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.accept_language", "")
	v.SetDefault("browser.max_sessions", 2)
	v.SetDefault("browser.serialize_per_credential", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)

	crawl := models.DefaultCrawlSettings()
	v.SetDefault("crawl.max_scrolls", crawl.MaxScrolls)
	v.SetDefault("crawl.scroll_amount", crawl.ScrollAmount)
	v.SetDefault("crawl.scroll_pause", crawl.ScrollPause)
	v.SetDefault("crawl.plateau_steps", crawl.PlateauSteps)
	v.SetDefault("crawl.stale_streak", crawl.StaleStreak)
	v.SetDefault("crawl.label_max_runes", crawl.LabelMaxRunes)
	v.SetDefault("crawl.dialog_timeout", crawl.DialogTimeout)
	v.SetDefault("crawl.candidate_timeout", crawl.CandidateTimeout)
	v.SetDefault("crawl.settle_delay", crawl.SettleDelay)
	v.SetDefault("crawl.nav_rate", crawl.NavRate)
	v.SetDefault("crawl.known_url_limit", crawl.KnownURLLimit)
	v.SetDefault("crawl.caption_min_runes", crawl.CaptionMinRunes)
	v.SetDefault("crawl.caption_max_runes", crawl.CaptionMaxRunes)

	v.SetDefault("jobs.backend", "memory")
	v.SetDefault("jobs.redis_addr", "localhost:6379")
	v.SetDefault("jobs.redis_password", "")
	v.SetDefault("jobs.redis_db", 0)
	v.SetDefault("jobs.ttl", 24*time.Hour)
	v.SetDefault("jobs.workers", 2)

	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "hotpost.db")

	v.SetDefault("scheduler.interval", 5*time.Minute)
	v.SetDefault("scheduler.timezone", "Asia/Ho_Chi_Minh")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("targets_file", "configs/targets.yaml")
}

// Validate 验证配置, 汇总所有错误
func (c *Config) Validate() error {
	var result error
	if err := c.Crawl.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	switch c.Browser.Driver {
	case "rod", "static":
	default:
		result = multierror.Append(result, fmt.Errorf("不支持的浏览器驱动: %s", c.Browser.Driver))
	}
	if c.Browser.MaxSessions < 1 {
		result = multierror.Append(result, fmt.Errorf("最大会话数必须大于0"))
	}
	if c.Browser.NavigationTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("导航超时必须大于0"))
	}
	if c.Jobs.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("任务并发数必须大于0"))
	}
	switch c.Jobs.Backend {
	case "memory", "redis":
	default:
		result = multierror.Append(result, fmt.Errorf("不支持的任务登记后端: %s", c.Jobs.Backend))
	}
	switch c.Store.Driver {
	case "memory", "postgres", "sqlite3":
	default:
		result = multierror.Append(result, fmt.Errorf("不支持的存储驱动: %s", c.Store.Driver))
	}
	if c.Scheduler.Interval <= 0 {
		result = multierror.Append(result, fmt.Errorf("扫描间隔必须大于0"))
	}
	if _, err := c.Location(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// Location 扫描使用的时区
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

// MergeCLIFlags 合并命令行参数到配置, 命令行优先
func (c *Config) MergeCLIFlags(driver string, headless bool, headlessSet bool, maxSessions int, workers int) {
	if driver != "" {
		c.Browser.Driver = driver
	}
	if headlessSet {
		c.Browser.Headless = headless
	}
	if maxSessions > 0 {
		c.Browser.MaxSessions = maxSessions
	}
	if workers > 0 {
		c.Jobs.Workers = workers
	}
}
