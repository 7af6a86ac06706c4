/*
Package android runs the background service as a real Android Service.

The Go side talks to the Java class org.gioui.x.bgservice.ServiceBridge
through JNI, using the JavaVM and application context exposed by
gioui.org/app. The service's lifecycle callbacks come back into Go through
exported native methods and are forwarded to the attached lifecycle.

# Android

The application must be built with the bridge jar (see go:generate in
host_android.go) and a manifest containing:

	<application>
		<service android:name="org.gioui.x.bgservice.ServiceBridge$BackgroundService"
			android:foregroundServiceType="dataSync"/>
	</application>
	<uses-permission android:name="android.permission.FOREGROUND_SERVICE"/>
	<uses-permission android:name="android.permission.FOREGROUND_SERVICE_DATA_SYNC"/>
	<uses-permission android:name="android.permission.POST_NOTIFICATIONS"/>
*/
package android
