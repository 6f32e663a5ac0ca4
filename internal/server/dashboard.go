package server

import "net/http"

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(DashboardHTML))
}

// DashboardHTML is the embedded single-page dashboard for Retrace.
// Events arrive over /ws; session progress is polled from /api/status.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Retrace Dashboard</title>
<style>
  html, body { margin: 0; }
  body { font: 14px/1.4 ui-monospace, Menlo, Consolas, monospace; background: #fafafa; color: #222; }
  header { padding: 14px 24px; background: #1e2a38; color: #fff; display: flex; align-items: baseline; gap: 16px; }
  header h1 { margin: 0; font-size: 18px; }
  header .link { font-size: 12px; padding: 2px 8px; border-radius: 3px; background: #8a2d2d; }
  header .link.up { background: #2d7a46; }
  main { padding: 16px 24px; }
  .session { display: flex; gap: 32px; margin-bottom: 12px; }
  .session dt { font-size: 11px; color: #777; }
  .session dd { margin: 0; font-weight: bold; }
  .track { height: 4px; background: #ddd; margin-bottom: 16px; }
  .track > div { height: 4px; width: 0; background: #2d7a46; }
  .counters { display: flex; gap: 12px; margin-bottom: 16px; }
  .counter { flex: 1; border-left: 4px solid #1e2a38; background: #fff; padding: 8px 12px; }
  .counter b { display: block; font-size: 22px; }
  .counter.warn { border-color: #c08a1e; }
  .counter.bad { border-color: #b33a3a; }
  table { width: 100%; border-collapse: collapse; background: #fff; }
  th { text-align: left; font-size: 11px; color: #777; padding: 6px 8px; border-bottom: 2px solid #ddd; }
  td { padding: 4px 8px; border-bottom: 1px solid #eee; white-space: nowrap; }
  td.detail { max-width: 480px; overflow: hidden; text-overflow: ellipsis; color: #555; }
  tr.behind td { background: #fdf6e6; }
  tr.clock_anomaly td { background: #fbeaea; }
  tr.state td { color: #2d7a46; }
  .toolbar { display: flex; justify-content: space-between; margin-bottom: 6px; }
  .toolbar button { font: inherit; font-size: 12px; cursor: pointer; }
</style>
</head>
<body>
<header>
  <h1>Retrace Dashboard</h1>
  <span class="link" id="link">offline</span>
</header>
<main>
  <dl class="session">
    <div><dt>STATE</dt><dd id="state">-</dd></div>
    <div><dt>SAMPLE</dt><dd id="position">0 / 0</dd></div>
    <div><dt>ELAPSED</dt><dd id="elapsed">0.000s</dd></div>
  </dl>
  <div class="track"><div id="progress"></div></div>

  <div class="counters">
    <div class="counter"><b id="n-samples">0</b>applied</div>
    <div class="counter warn"><b id="n-behind">0</b>behind schedule</div>
    <div class="counter bad"><b id="n-anomalies">0</b>clock anomalies</div>
    <div class="counter"><b id="max-lag">0.0ms</b>max lag</div>
  </div>

  <div class="toolbar">
    <span>Events (newest first)</span>
    <button onclick="reset()">Reset</button>
  </div>
  <table>
    <thead><tr><th>time</th><th>#</th><th>kind</th><th>lag</th><th>detail</th></tr></thead>
    <tbody id="rows"></tbody>
  </table>
</main>
<script>
const KEEP = 250;
const rows = document.getElementById('rows');
const counts = { sample: 0, behind: 0, clock_anomaly: 0 };
let maxLag = 0;

function text(id, v) { document.getElementById(id).textContent = v; }

function link(up) {
  const el = document.getElementById('link');
  el.textContent = up ? 'live' : 'offline';
  el.className = up ? 'link up' : 'link';
}

function listen() {
  const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const sock = new WebSocket(scheme + location.host + '/ws');
  sock.onopen = () => link(true);
  sock.onclose = () => { link(false); setTimeout(listen, 2000); };
  sock.onmessage = (m) => onEvent(JSON.parse(m.data));
}

function poll() {
  fetch('/api/status')
    .then(r => r.ok ? r.json() : null)
    .then(st => {
      if (!st) return;
      text('state', st.state);
      text('position', st.index + ' / ' + st.total);
      const pct = st.total ? 100 * st.index / st.total : 0;
      document.getElementById('progress').style.width = pct + '%';
    })
    .catch(() => {});
}

function describe(ev) {
  if (ev.kind === 'sample') return JSON.stringify(ev.sample ? ev.sample.controls : {});
  if (ev.kind === 'behind') return 'applied without waiting';
  if (ev.kind === 'state') { text('state', ev.state); return ev.state; }
  return ev.message || '';
}

function onEvent(ev) {
  if (ev.kind in counts) counts[ev.kind]++;
  if (ev.kind === 'behind') counts.sample++;
  maxLag = Math.max(maxLag, ev.lag || 0);
  text('elapsed', (ev.elapsed || 0).toFixed(3) + 's');
  refresh();

  const tr = document.createElement('tr');
  tr.className = ev.kind;
  [new Date(ev.time).toISOString().slice(11, 23), ev.index, ev.kind,
   ((ev.lag || 0) * 1000).toFixed(1) + 'ms', describe(ev)].forEach((v, i) => {
    const td = document.createElement('td');
    if (i === 4) td.className = 'detail';
    td.textContent = v;
    tr.appendChild(td);
  });
  rows.prepend(tr);
  while (rows.rows.length > KEEP) rows.deleteRow(-1);
}

function refresh() {
  text('n-samples', counts.sample);
  text('n-behind', counts.behind);
  text('n-anomalies', counts.clock_anomaly);
  text('max-lag', (maxLag * 1000).toFixed(1) + 'ms');
}

function reset() {
  counts.sample = counts.behind = counts.clock_anomaly = 0;
  maxLag = 0;
  rows.innerHTML = '';
  refresh();
}

listen();
poll();
setInterval(poll, 500);
</script>
</body>
</html>`
