package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader 通用配置加载器
type Loader struct {
	ServiceName string
	// Dir overrides config directory discovery when set.
	Dir string
}

// NewLoader 创建配置加载器
func NewLoader(serviceName string) *Loader {
	return &Loader{
		ServiceName: serviceName,
	}
}

// Load 加载配置文件并解析到目标结构体, 返回实际使用的配置文件路径
func (l *Loader) Load(configStruct interface{}) (string, error) {
	runType := GetRunType()
	if runType != "test" && runType != "prod" && runType != "dev" {
		return "", fmt.Errorf("invalid RUN_TYPE: %s, must be 'test', 'prod', or 'dev'", runType)
	}

	configFile := filepath.Join(l.getConfigDir(), fmt.Sprintf("%s.yaml", runType))
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return "", fmt.Errorf("config file not found: %s", configFile)
	}

	if err := l.LoadFile(configFile, configStruct); err != nil {
		return "", err
	}
	return configFile, nil
}

// LoadFile 解析指定配置文件, 环境变量 (<SERVICE>_<KEY>) 覆盖文件中的值
func (l *Loader) LoadFile(configFile string, configStruct interface{}) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(l.ServiceName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := v.Unmarshal(configStruct); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// getConfigDir 获取配置文件目录
func (l *Loader) getConfigDir() string {
	// 优先级：
	// 1. Loader.Dir
	// 2. CONFIG_PATH环境变量
	// 3. 相对于可执行文件的conf目录
	// 4. 相对于当前工作目录的conf目录
	if l.Dir != "" {
		return l.Dir
	}

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return filepath.Join(configPath, "conf")
	}

	if exePath, err := os.Executable(); err == nil {
		confPath := filepath.Join(filepath.Dir(exePath), "conf")
		if _, err := os.Stat(confPath); err == nil {
			return confPath
		}
	}

	return "conf"
}

// GetRunType 获取当前运行类型
func GetRunType() string {
	runType := os.Getenv("RUN_TYPE")
	if runType == "" {
		return "test"
	}
	return runType
}

// IsProduction 判断是否为生产环境
func IsProduction(runType string) bool {
	return runType == "prod"
}
