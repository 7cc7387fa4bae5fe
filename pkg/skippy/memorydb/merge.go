package memorydb

// DeepMerge merges patch into base: nested objects merge recursively,
// arrays replace wholesale, and a null leaf in patch deletes the
// corresponding key from base. base is not mutated; the merged result is
// returned.
//
// Example: DeepMerge({a:{b:1}}, {a:{c:2}}) == {a:{b:1,c:2}}; then
// DeepMerge({a:{b:1,c:2}}, {a:{b:null}}) == {a:{c:2}}.
func DeepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		patchObj, patchIsObj := v.(map[string]any)
		baseObj, baseIsObj := out[k].(map[string]any)
		if patchIsObj && baseIsObj {
			out[k] = DeepMerge(baseObj, patchObj)
			continue
		}
		out[k] = v
	}
	return out
}
