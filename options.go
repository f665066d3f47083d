package mqttpacket

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-io/mqttpacket/packet"
	"github.com/golang-io/requests"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Listen struct {
	URL string `yaml:"url" json:"url"`
}

type Log struct {
	File  string `yaml:"file" json:"file"`
	Level string `yaml:"level" json:"level"`
}

type config struct {
	HTTP Listen `yaml:"http" json:"http"`
	Log  Log    `yaml:"log" json:"log"`

	// BufferEstimate 编码器初始缓冲区的估计大小, 按 packet.Granularity 向上取整
	BufferEstimate int `yaml:"bufferEstimate" json:"bufferEstimate"`

	// Filters 解析抓包时预先登记的主题过滤器, 用来标注 PUBLISH 报文
	Filters []string `yaml:"filters" json:"filters"`
}

var CONFIG = &config{
	HTTP: Listen{URL: "127.0.0.1:8080"},
	Log:  Log{Level: "info"},
}

// LoadConfig reads a YAML (or JSON) file into CONFIG. Keys missing from the
// file keep their current value.
func LoadConfig(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, CONFIG); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return CONFIG.apply()
}

func (c *config) apply() error {
	if c.Log.File != "" {
		f, err := os.OpenFile(c.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		log.SetOutput(f)
	}
	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "error":
			log.SetLevel(log.ErrorLevel)
		case "warn":
			log.SetLevel(log.WarnLevel)
		case "info":
			log.SetLevel(log.InfoLevel)
		case "debug":
			log.SetLevel(log.DebugLevel)
		default:
			return errors.New("unknown log level: " + c.Log.Level)
		}
	}
	return nil
}

// ConnectOptions 构造 CONNECT 报文的参数
type ConnectOptions struct {
	ClientID     string
	KeepAlive    uint16
	CleanSession bool
	Version      byte
	Will         *packet.Will

	// Username nil 表示不携带用户名
	Username *string
	// Password nil 表示不携带密码
	Password []byte
}

type Option func(*ConnectOptions)

// NewConnectOptions returns v3.1.1 options with a generated client id,
// a clean session and a 60 second keep alive, modified by opts.
func NewConnectOptions(opts ...Option) ConnectOptions {
	options := ConnectOptions{
		ClientID:     "mqttpacket-" + requests.GenId(),
		KeepAlive:    60,
		CleanSession: true,
		Version:      packet.VERSION311,
	}
	for _, o := range opts {
		o(&options)
	}
	return options
}

func ClientID(id string) Option {
	return func(o *ConnectOptions) {
		o.ClientID = id
	}
}

func KeepAlive(seconds uint16) Option {
	return func(o *ConnectOptions) {
		o.KeepAlive = seconds
	}
}

func CleanSession(clean bool) Option {
	return func(o *ConnectOptions) {
		o.CleanSession = clean
	}
}

func Credentials(username string, password []byte) Option {
	return func(o *ConnectOptions) {
		o.Username = &username
		o.Password = password
	}
}

func Will(topicName string, message []byte, qos uint8, retain bool) Option {
	return func(o *ConnectOptions) {
		o.Will = &packet.Will{TopicName: topicName, Message: message, QoS: qos, Retain: retain}
	}
}

func Version[T ~string | ~byte](version T) Option {
	return func(o *ConnectOptions) {
		switch v := any(version).(type) {
		case byte:
			o.Version = v
		case string:
			switch v {
			case "3.1.1":
				o.Version = packet.VERSION311
			case "3.1":
				o.Version = packet.VERSION310
			default:
				panic(fmt.Errorf("version = %s not support", v))
			}
		}
	}
}
