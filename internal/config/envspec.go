package config

import "reflect"

// EnvVar documents one environment variable understood by the daemon.
type EnvVar struct {
	Name        string
	FullName    string
	Type        string
	Default     string
	Description string
}

// EnvSpecs derives the environment variable catalogue from the Config
// struct tags, so the documentation can never drift from the code.
func EnvSpecs() []EnvVar {
	const prefix = "ESCROWD_"

	t := reflect.TypeOf(Config{})
	specs := make([]EnvVar, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		specs = append(specs, EnvVar{
			Name:        name,
			FullName:    prefix + name,
			Type:        f.Type.String(),
			Default:     f.Tag.Get("envDefault"),
			Description: f.Tag.Get("envInfo"),
		})
	}
	return specs
}
