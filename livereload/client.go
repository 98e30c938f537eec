package livereload

import (
	"net/http"
)

// clientScript connects back to SocketPath and applies reload commands.
// A stylesheet whose file name matches the changed path is refreshed by
// changing its URL. The page reloads when no stylesheet matches.
const clientScript = `(function () {
  if (window.__devproxyLiveReload) { return; }
  window.__devproxyLiveReload = true;

  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var url = scheme + location.host + "` + SocketPath + `";

  function baseName(path) {
    return (path || "").split(/[\\/]/).pop();
  }

  function refreshStyles(path) {
    var name = baseName(path);
    if (!name) { return false; }
    var refreshed = false;
    var links = document.querySelectorAll('link[rel~="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var link = links[i];
      if (!link.href) { continue; }
      var href = new URL(link.href);
      if (baseName(href.pathname) !== name) { continue; }
      href.searchParams.set("livereload", Date.now().toString());
      link.href = href.toString();
      refreshed = true;
    }
    return refreshed;
  }

  function connect() {
    var socket = new WebSocket(url);
    socket.onopen = function () {
      socket.send(JSON.stringify({command: "hello", protocols: ["` + ProtocolOfficial7 + `"]}));
    };
    socket.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.command !== "reload") { return; }
      if (!msg.liveCSS || !refreshStyles(msg.path)) {
        location.reload();
      }
    };
    socket.onclose = function () {
      setTimeout(connect, 1000);
    };
  }

  connect();
})();
`

// ScriptHandler serves the client script.
func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(clientScript))
	})
}
