package server

import "net/http"

func (rt *Router) handleServiceProviderConfig(w http.ResponseWriter, r *http.Request) {
	rt.handler.WriteJSON(w, http.StatusOK, rt.spConfig)
}

func (rt *Router) handleSchemas(w http.ResponseWriter, r *http.Request) {
	rt.handler.WriteJSON(w, http.StatusOK, rt.schemas)
}

func (rt *Router) handleResourceTypes(w http.ResponseWriter, r *http.Request) {
	rt.handler.WriteJSON(w, http.StatusOK, rt.resourceTypes)
}
