package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	// Sprint 为排期引擎的配置
	// 注意这些配置只在引擎构造时读取一次，运行时不可变
	Sprint struct {
		// AnchorDate 为合成锚点日期（格式 2006-01-02）
		// 当数据库中没有包含今天的冲刺定义时，引擎会从这个日期开始推算冲刺边界
		AnchorDate string `env:"ANCHOR_DATE" envDefault:"2025-07-27"`
		// LengthWeeks 为每个冲刺的周数
		LengthWeeks int `env:"LENGTH_WEEKS" envDefault:"2"`
		// WeekendDays 为每周的休息日（0 = 周日，6 = 周六）
		// 产品面向的团队每周休周五和周六，所以默认值不是 0,6
		WeekendDays []int `env:"WEEKEND_DAYS" envDefault:"5,6"`
		// MaxResolveIterations 为合成锚点推算的迭代上限
		// 超过这个上限说明配置有问题，引擎会降级到按周解析
		MaxResolveIterations int `env:"MAX_RESOLVE_ITERATIONS" envDefault:"200"`
	} `envPrefix:"SPRINT_"`
	// Workday 为每日状态到工时的映射以及完成度阈值
	Workday struct {
		FullDayHours float64 `env:"FULL_DAY_HOURS" envDefault:"7"`
		HalfDayHours float64 `env:"HALF_DAY_HOURS" envDefault:"3.5"`
		// 完成度阈值，从高到低：excellent / good / warning，低于 warning 则为 critical
		ExcellentThreshold int `env:"EXCELLENT_THRESHOLD" envDefault:"95"`
		GoodThreshold      int `env:"GOOD_THRESHOLD" envDefault:"85"`
		WarningThreshold   int `env:"WARNING_THRESHOLD" envDefault:"70"`
	} `envPrefix:"WORKDAY_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	OTP struct {
		Expiration int `env:"EXPIRATION" envDefault:"900"` // 15 分钟
	} `envPrefix:"OTP_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
	}

	return cfg, nil
}
