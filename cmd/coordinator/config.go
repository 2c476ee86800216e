package main

import "github.com/spf13/viper"

type Config struct {
	Logger        loggerConf
	Host          string
	Port          int
	AdminToken    string
	DeviceToken   string
	DefaultActive bool
}

type loggerConf struct {
	Level string
}

func LoadConfig(path string) (Config, error) {
	config := Config{}

	viper.SetDefault("Port", 3002)
	viper.SetDefault("DefaultActive", true)
	viper.SetDefault("Logger.Level", "info")

	// Tokens usually arrive through the environment on hosted deployments.
	viper.SetEnvPrefix("COORDINATOR")
	viper.AutomaticEnv()
	_ = viper.BindEnv("AdminToken", "COORDINATOR_ADMIN_TOKEN")
	_ = viper.BindEnv("DeviceToken", "COORDINATOR_DEVICE_TOKEN")
	_ = viper.BindEnv("Port", "COORDINATOR_PORT")
	_ = viper.BindEnv("DefaultActive", "COORDINATOR_DEFAULT_ACTIVE")

	viper.SetConfigFile(path)

	err := viper.ReadInConfig()
	if err != nil {
		return config, err
	}

	err = viper.Unmarshal(&config)
	return config, err
}
