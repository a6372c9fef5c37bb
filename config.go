package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/go-playground/validator.v9"
)

var (
	// ErrMissingConfigKey is returned when a required configuration path is
	// absent.
	ErrMissingConfigKey = errors.New("config: missing key")

	// ErrInvalidConfig is returned when configuration values fail validation.
	ErrInvalidConfig = errors.New("config: invalid value")
)

var validate = validator.New()

// OptimParams is the optim_params section configuring one network's
// optimizer and learning rate schedule.
type OptimParams struct {
	LearningRate   LearningRateParams   `mapstructure:"learning_rate"`
	Regularization RegularizationParams `mapstructure:"regularization"`
}

// LearningRateParams configures the initial rate and its epoch decay.
type LearningRateParams struct {
	Initial       float64 `mapstructure:"initial" validate:"gt=0"`
	EpochSchedule []int   `mapstructure:"epoch_schedule" validate:"dive,gt=0"`
	DecayFactor   float64 `mapstructure:"decay_factor" validate:"gte=0"`
}

// RegularizationParams configures weight penalties.
type RegularizationParams struct {
	L2 float64 `mapstructure:"L2" validate:"gte=0"`
}

// Validate checks value ranges.
func (p OptimParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// LoadOptimParams reads an optim_params section found under key in v. An
// empty key reads from the root.
func LoadOptimParams(v *viper.Viper, key string) (OptimParams, error) {
	var params OptimParams

	path := func(p string) string {
		if key == "" {
			return p
		}
		return key + "." + p
	}

	for _, p := range []string{"learning_rate.initial", "learning_rate.epoch_schedule", "regularization.L2"} {
		if !v.IsSet(path(p)) {
			return params, errors.Wrap(ErrMissingConfigKey, path(p))
		}
	}

	params.LearningRate.Initial = v.GetFloat64(path("learning_rate.initial"))
	params.LearningRate.EpochSchedule = v.GetIntSlice(path("learning_rate.epoch_schedule"))
	params.LearningRate.DecayFactor = v.GetFloat64(path("learning_rate.decay_factor"))
	params.Regularization.L2 = v.GetFloat64(path("regularization.L2"))

	if len(params.LearningRate.EpochSchedule) > 0 && !v.IsSet(path("learning_rate.decay_factor")) {
		return params, errors.Wrap(ErrMissingConfigKey, path("learning_rate.decay_factor"))
	}

	logDebugf("optim params %q: lr=%g l2=%g schedule=%v", key, params.LearningRate.Initial,
		params.Regularization.L2, params.LearningRate.EpochSchedule)
	return params, params.Validate()
}

// Config is the full configuration of the train command.
type Config struct {
	Train TrainSettings `mapstructure:"train"`
	Algo  AlgoSettings  `mapstructure:"algo"`
}

// TrainSettings controls the training loop and its outputs.
type TrainSettings struct {
	Epochs      int     `mapstructure:"epochs" validate:"gt=0"`
	BatchSize   int     `mapstructure:"batch_size" validate:"gt=0"`
	Samples     int     `mapstructure:"samples" validate:"gt=0"`
	MaxGradNorm float64 `mapstructure:"max_grad_norm" validate:"gte=0"`
	TargetTau   float64 `mapstructure:"target_tau" validate:"gte=0,lte=1"`
	Seed        int64   `mapstructure:"seed"`
	CUDA        bool    `mapstructure:"cuda"`
	Timer       bool    `mapstructure:"timer"`
	Progress    bool    `mapstructure:"progress"`
	LeaveBar    bool    `mapstructure:"leave_bar"`
	OutputDir   string  `mapstructure:"output_dir" validate:"required"`
	LogLevel    string  `mapstructure:"log_level" validate:"oneof=debug info warning error"`
}

// AlgoSettings describes the model and its optimizer.
type AlgoSettings struct {
	HiddenDim   int         `mapstructure:"hidden_dim" validate:"gt=0"`
	LatentDim   int         `mapstructure:"latent_dim" validate:"gt=0"`
	KLWeight    float64     `mapstructure:"kl_weight" validate:"gte=0"`
	OptimParams OptimParams `mapstructure:"optim_params"`
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("train.epochs", 20)
	v.SetDefault("train.batch_size", 32)
	v.SetDefault("train.samples", 512)
	v.SetDefault("train.max_grad_norm", 1.0)
	v.SetDefault("train.target_tau", 0.005)
	v.SetDefault("train.seed", 1)
	v.SetDefault("train.cuda", false)
	v.SetDefault("train.timer", true)
	v.SetDefault("train.progress", true)
	v.SetDefault("train.leave_bar", true)
	v.SetDefault("train.output_dir", ".")
	v.SetDefault("train.log_level", "info")

	v.SetDefault("algo.hidden_dim", 32)
	v.SetDefault("algo.latent_dim", 2)
	v.SetDefault("algo.kl_weight", 0.1)
	v.SetDefault("algo.optim_params.learning_rate.initial", 1e-3)
	v.SetDefault("algo.optim_params.learning_rate.epoch_schedule", []int{10, 15})
	v.SetDefault("algo.optim_params.learning_rate.decay_factor", 0.1)
	v.SetDefault("algo.optim_params.regularization.L2", 0.0)
}

// LoadConfig builds the train configuration from defaults, an optional
// config file, and path=value overrides applied in order.
func LoadConfig(path string, overrides []string) (Config, error) {
	var cfg Config

	v := viper.New()
	setConfigDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decode config")
	}
	optim, err := LoadOptimParams(v, "algo.optim_params")
	if err != nil {
		return cfg, err
	}
	cfg.Algo.OptimParams = optim

	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return cfg, errors.Wrapf(ErrInvalidConfig, "override %q is not path=value", o)
		}
		if err := RSetAttr(&cfg, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return cfg, errors.Wrapf(err, "override %s", key)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return cfg, nil
}
