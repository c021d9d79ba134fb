package config

import "fmt"

// validate checks the merged configuration for the fields the engine
// cannot safely run without, returning every failure found (not just the
// first), mirroring the teacher's validator.go.
func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, NewValidationError("database", "host", ErrMissingRequiredField))
	}
	if cfg.Database.Database == "" {
		errs = append(errs, NewValidationError("database", "database", ErrMissingRequiredField))
	}

	if cfg.MQBroker.URL == "" {
		errs = append(errs, NewValidationError("mq_broker", "url", ErrMissingRequiredField))
	}
	if cfg.MQBroker.InboundQueue == "" {
		errs = append(errs, NewValidationError("mq_broker", "inbound_queue", ErrMissingRequiredField))
	}

	if cfg.Plugins.DefaultWeight <= 0 {
		errs = append(errs, NewValidationError("plugins", "default_weight", ErrInvalidValue))
	}

	if cfg.OpenstackPoll.MigrateRetries <= 0 {
		errs = append(errs, NewValidationError("openstack_polling", "migrate_retries", ErrInvalidValue))
	}
	if cfg.OpenstackPoll.PowerStateMaxWait < cfg.OpenstackPoll.PowerStateMinWait {
		errs = append(errs, NewValidationError("openstack_polling", "power_state_max_wait", ErrInvalidValue))
	}

	if cfg.SLAAgreements.Enabled && cfg.SLAAgreements.Endpoint == "" {
		errs = append(errs, NewValidationError("sla_agreements", "endpoint", ErrMissingRequiredField))
	}

	if cfg.Infra.AuthURL == "" {
		errs = append(errs, NewValidationError("infra", "auth_url", ErrMissingRequiredField))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d validation error(s): %w", len(errs), joinErrors(errs))
}

// joinErrors folds multiple validation errors into one error whose message
// joins theirs with "; ". A single error is returned as is; with several,
// the individual errors are not kept in a wrapped chain.
func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
