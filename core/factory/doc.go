// Package factory instantiates pluggable components from configuration.
//
// A component is named by ModuleConfig.Type and configured by the free-form
// ModuleConfig.Conf map. Packages own a Registry for their extension point
// (cost strategies, candidate generators, metrics sinks) and register their
// built-ins from init:
//
//	_ = registry.Register("time", func(conf map[string]any) (Constructor, error) {
//	    var c struct {
//	        DeadheadWeight float64 `json:"deadhead_weight"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    ...
//	})
package factory
