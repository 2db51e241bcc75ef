package integration_test

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// --- Model Struct Generation ---

// generateModelStruct creates an instance of a model struct (e.g., model.Agent) using its factory.
// It allows overriding default fields by passing a struct of the same type with desired values set.
func generateModelStruct(modelName string, overrides ...interface{}) (interface{}, error) {
	var overrideStruct interface{}
	if len(overrides) > 0 {
		overrideStruct = overrides[0]
	}

	switch modelName {
	case "Agent":
		var agentOverride *model.Agent
		if ovr, ok := overrideStruct.(*model.Agent); ok {
			agentOverride = ovr
		}
		return model.NewAgent(agentOverride), nil
	case "Profile":
		var profileOverride *model.Profile
		if ovr, ok := overrideStruct.(*model.Profile); ok {
			profileOverride = ovr
		}
		return model.NewProfile(profileOverride), nil
	case "OnboardingChecklist":
		var checklistOverride *model.OnboardingChecklist
		if ovr, ok := overrideStruct.(*model.OnboardingChecklist); ok {
			checklistOverride = ovr
		}
		return model.NewChecklist(checklistOverride), nil
	case "BuildQueueEntry":
		var buildOverride *model.BuildQueueEntry
		if ovr, ok := overrideStruct.(*model.BuildQueueEntry); ok {
			buildOverride = ovr
		}
		return model.NewBuildQueueEntry(buildOverride), nil
	// Add cases for other models as needed
	default:
		return nil, fmt.Errorf("unknown model name: %s", modelName)
	}
}

// CustomDecodeHook handles conversion from []byte (datatypes.JSON) to map[string]interface{} or *Struct types.
func unmarshalJSONDataHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		// Check if the source data is []byte
		if f.Kind() != reflect.Slice || f.Elem().Kind() != reflect.Uint8 {
			return data, nil
		}

		byteSlice, ok := data.([]byte)
		if !ok {
			// This path should ideally not be hit due to the kind checks above
			return data, nil
		}

		// If the byte slice is empty or represents JSON "null", handle appropriately.
		if len(byteSlice) == 0 || string(byteSlice) == "null" {
			if t.Kind() == reflect.Map {
				return reflect.MakeMap(t).Interface(), nil // Return an empty map
			} else if t.Kind() == reflect.Ptr {
				return reflect.Zero(t).Interface(), nil // Return nil for pointer types
			}
			// For other types, if it's an empty/null JSON, it might be an error or needs specific handling.
			return data, nil
		}

		// Attempt to unmarshal for target types: map[string]interface{} or pointer to struct
		if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String && t.Elem().Kind() == reflect.Interface {
			var newMap map[string]interface{}
			if err := json.Unmarshal(byteSlice, &newMap); err != nil {
				return nil, fmt.Errorf("unmarshalJSONDataHookFunc: failed to json.Unmarshal to map[string]interface{} from '%s': %w", string(byteSlice), err)
			}
			return newMap, nil
		} else if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
			structInstance := reflect.New(t.Elem()).Interface()
			if err := json.Unmarshal(byteSlice, structInstance); err != nil {
				return nil, fmt.Errorf("unmarshalJSONDataHookFunc: failed to json.Unmarshal to struct %s from '%s': %w", t.Elem().Name(), string(byteSlice), err)
			}
			return structInstance, nil
		}

		// If no specific conversion matched, return data as is.
		return data, nil
	}
}

// --- Payload Struct Generation ---

// generatePayloadStruct creates an instance of a NATS payload struct (e.g., model.ProfileUpdatedPayload)
// using the model payload factories. Overrides can be provided as a struct of
// the target payload type or as a map keyed by json tag names.
func generatePayloadStruct(payloadName string, overrides ...interface{}) (interface{}, error) {
	var targetPayload interface{}

	switch payloadName {
	case "ProfileUpdatedPayload":
		targetPayload = model.NewProfileUpdatedPayload()
	case "AgentDetectedPayload":
		targetPayload = model.NewAgentDetectedPayload()
	case "LifecycleCommandPayload":
		targetPayload = model.NewLifecycleCommandPayload()
	case "RebuildCommandPayload":
		targetPayload = model.NewRebuildCommandPayload()
	// Add cases for other payload structs
	default:
		return nil, fmt.Errorf("unknown payload name: %s", payloadName)
	}

	// Apply overrides if provided
	if len(overrides) > 0 && overrides[0] != nil {
		overrideValue := reflect.ValueOf(overrides[0])
		targetValue := reflect.ValueOf(targetPayload)

		if overrideValue.Type() == targetValue.Type() {
			// If override is the same type, merge non-zero fields
			targetElem := targetValue.Elem()
			overrideElem := overrideValue.Elem()
			for i := 0; i < targetElem.NumField(); i++ {
				overrideField := overrideElem.Field(i)
				if !overrideField.IsZero() { // Only copy non-zero fields from override
					targetElem.Field(i).Set(overrideField)
				}
			}
		} else if overrideValue.Kind() == reflect.Map {
			// If override is a map, use mapstructure to decode it onto the target
			mapDecoderConfig := &mapstructure.DecoderConfig{
				Result:           targetPayload, // Decode directly into the target struct
				TagName:          "json",
				WeaklyTypedInput: true,
				DecodeHook: mapstructure.ComposeDecodeHookFunc(
					unmarshalJSONDataHookFunc(),
				),
			}
			mapDecoder, mapErr := mapstructure.NewDecoder(mapDecoderConfig)
			if mapErr != nil {
				return nil, fmt.Errorf("failed to create mapstructure decoder for override map: %w", mapErr)
			}
			if mapDecodeErr := mapDecoder.Decode(overrides[0]); mapDecodeErr != nil {
				return nil, fmt.Errorf("failed to decode override map onto payload struct %s: %w", payloadName, mapDecodeErr)
			}
		} else {
			return nil, fmt.Errorf("unsupported override type %T for payload %s", overrides[0], payloadName)
		}
	}

	return targetPayload, nil
}

// --- NATS Payload Generation (Bytes) ---

// subjectToPayloadMap maps base NATS subjects to their corresponding payload struct names.
var subjectToPayloadMap = map[string]string{
	"v1.profiles.updated":  "ProfileUpdatedPayload",
	"v1.agents.detected":   "AgentDetectedPayload",
	"v1.agents.activate":   "LifecycleCommandPayload",
	"v1.agents.deactivate": "LifecycleCommandPayload",
	"v1.agents.suspend":    "LifecycleCommandPayload",
	"v1.agents.reactivate": "LifecycleCommandPayload",
	"v1.agents.rebuild":    "RebuildCommandPayload",
	// Add other mappings
}
